// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reducer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/masterchat/internal/logging"
)

type recordingTarget struct {
	updates   []string
	finalized []string
	err       error
}

func (t *recordingTarget) SetMessageContent(id, content string) error {
	t.updates = append(t.updates, content)
	return t.err
}

func (t *recordingTarget) FinalizeMessage(id string) error {
	t.finalized = append(t.finalized, id)
	return t.err
}

func feed(fragments ...string) <-chan string {
	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return ch
}

func TestRunWritesAccumulatedText(t *testing.T) {
	target := &recordingTarget{}
	r := New(target, logging.Discard())

	final := r.Run("m1", feed("Hel", "lo", "!"))

	assert.Equal(t, "Hello!", final)
	assert.Equal(t, []string{"Hel", "Hello", "Hello!"}, target.updates)
	assert.Equal(t, []string{"m1"}, target.finalized)
}

func TestRunZeroFragments(t *testing.T) {
	target := &recordingTarget{}

	final := New(target, logging.Discard()).Run("m1", feed())

	assert.Empty(t, final)
	assert.Empty(t, target.updates)
	assert.Equal(t, []string{"m1"}, target.finalized)
}

func TestRunChunkingInvariance(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. ✓ ünïcödé"
	splits := [][]string{
		{text},
		strings.SplitAfter(text, " "),
		strings.Split(text, ""),
		{text[:10], text[10:11], text[11:]},
	}

	for _, fragments := range splits {
		target := &recordingTarget{}
		final := New(target, logging.Discard()).Run("m", feed(fragments...))

		assert.Equal(t, text, final)
		require.NotEmpty(t, target.updates)
		assert.Equal(t, text, target.updates[len(target.updates)-1])
	}
}

func TestRunDrainsWhenTargetFails(t *testing.T) {
	target := &recordingTarget{err: errors.New("gone")}

	final := New(target, logging.Discard()).Run("m", feed("a", "b", "c"))

	assert.Equal(t, "abc", final)
	assert.Len(t, target.updates, 3)
	assert.Len(t, target.finalized, 1)
}
