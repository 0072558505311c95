// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reducer folds a fragment stream into an assistant message.
//
// After every fragment the full accumulated text (never the delta) is written
// to the target, so readers always see the complete-so-far reply.
package reducer

import (
	"log/slog"
	"strings"

	"github.com/jeranaias/masterchat/internal/logging"
)

// Target receives the accumulated text of a streaming message.
type Target interface {
	SetMessageContent(messageID, content string) error
	FinalizeMessage(messageID string) error
}

// Reducer applies fragments to a Target one at a time.
type Reducer struct {
	target Target
	logger *slog.Logger
}

// New creates a Reducer for target. A nil logger uses the default.
func New(target Target, logger *slog.Logger) *Reducer {
	return &Reducer{
		target: target,
		logger: logging.Or(logger).With("component", "reducer"),
	}
}

// Run consumes fragments until the channel is closed, then finalizes the
// message and returns its final text. Each update completes before the next
// fragment is read. Target errors are logged and the stream is still drained.
func (r *Reducer) Run(messageID string, fragments <-chan string) string {
	var acc strings.Builder
	failed := false

	for fragment := range fragments {
		acc.WriteString(fragment)
		if err := r.target.SetMessageContent(messageID, acc.String()); err != nil && !failed {
			// Logged once; the message is usually gone (deleted mid-stream).
			r.logger.Warn("stream update dropped", "message_id", messageID, "error", err)
			failed = true
		}
	}

	if err := r.target.FinalizeMessage(messageID); err != nil && !failed {
		r.logger.Warn("finalize failed", "message_id", messageID, "error", err)
	}
	return acc.String()
}
