// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/session"
)

// ErrEmptyInput is returned when piped input has nothing to send.
var ErrEmptyInput = errors.New("no input on stdin")

// RunPipe sends everything read from in as one message in a new
// conversation, with the given files attached, and writes the reply text to
// out. Used when stdin is not a terminal, e.g. `echo "hi" | masterchat`.
func RunPipe(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer, files []string) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" && len(files) == 0 {
		return ErrEmptyInput
	}

	if err := AttachFiles(ctx, sess, files); err != nil {
		return err
	}

	// Each piped message starts its own conversation.
	sess.NewChat()
	sess.SetInput(text)
	sent, err := sess.Send(ctx)
	if err != nil {
		return err
	}
	if !sent {
		return ErrEmptyInput
	}

	conv := sess.Store().Active()
	if conv == nil {
		return errors.New("reply not stored")
	}
	reply := conv.LastMessage()
	if reply == nil {
		return errors.New("reply not stored")
	}
	_, err = fmt.Fprintln(out, reply.Content)
	return err
}

// AttachFiles adds each path to the pending attachments. Paths are used as
// given, spaces included. The first file that fails to encode is reported.
func AttachFiles(ctx context.Context, sess *session.Session, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	sources := make([]attachment.Source, len(paths))
	for i, p := range paths {
		sources[i] = attachment.FromPath(p)
	}
	for _, res := range sess.Attach(ctx, sources...) {
		if !res.OK() {
			return fmt.Errorf("attach %s: %w", res.Name, res.Err)
		}
	}
	return nil
}
