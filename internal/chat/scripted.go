// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	"github.com/jeranaias/masterchat/internal/prompt"
)

// ScriptedProvider replays fixed fragments, then returns Err. It records
// every request it receives. Used for tests and offline runs.
type ScriptedProvider struct {
	Fragments []string
	Err       error

	mu       sync.Mutex
	requests []*prompt.Request
}

// NewEchoProvider returns a provider that answers with the text of the new
// turn. Handy when no model backend is reachable.
func NewEchoProvider() Provider {
	return echoProvider{}
}

// Name implements Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Stream implements Provider.
func (p *ScriptedProvider) Stream(ctx context.Context, req *prompt.Request, emit func(string)) error {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	for _, f := range p.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(f)
	}
	return p.Err
}

// Requests returns the requests received so far.
func (p *ScriptedProvider) Requests() []*prompt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*prompt.Request(nil), p.requests...)
}

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Stream(ctx context.Context, req *prompt.Request, emit func(string)) error {
	for _, part := range req.NewTurn {
		if err := ctx.Err(); err != nil {
			return err
		}
		if part.IsText() {
			emit(part.Text)
		} else {
			emit("[" + part.Inline.MIMEType + "]")
		}
	}
	return nil
}
