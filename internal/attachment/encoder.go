// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
)

const (
	// DefaultMaxBytes is the largest file accepted (20 MiB, the inline limit
	// of the hosted providers).
	DefaultMaxBytes int64 = 20 << 20

	// DefaultConcurrency bounds how many files are read at once.
	DefaultConcurrency = 4
)

var (
	// ErrRead indicates the file could not be opened or read.
	ErrRead = errors.New("attachment: read failed")

	// ErrTooLarge indicates the file exceeds the configured size cap.
	ErrTooLarge = errors.New("attachment: file too large")
)

// Result is the outcome of encoding one Source.
type Result struct {
	Name       string
	Attachment model.Attachment
	Err        error
}

// OK reports whether encoding succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Options configures an Encoder. Zero values select the defaults.
type Options struct {
	MaxBytes    int64
	Concurrency int
	Logger      *slog.Logger
}

// Encoder converts Sources into Attachments.
type Encoder struct {
	maxBytes    int64
	concurrency int
	log         *slog.Logger
}

// NewEncoder creates an Encoder.
func NewEncoder(opts Options) *Encoder {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Encoder{
		maxBytes:    opts.MaxBytes,
		concurrency: opts.Concurrency,
		log:         logging.Or(opts.Logger).With("component", "attachment"),
	}
}

// Encode reads src completely and returns its Attachment. On failure the
// Result carries Err and an empty Attachment.
func (e *Encoder) Encode(src Source) Result {
	name := src.Name()

	rc, err := src.Open()
	if err != nil {
		return Result{Name: name, Err: fmt.Errorf("%w: %s: %v", ErrRead, name, err)}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.maxBytes+1))
	if err != nil {
		return Result{Name: name, Err: fmt.Errorf("%w: %s: %v", ErrRead, name, err)}
	}
	if int64(len(data)) > e.maxBytes {
		return Result{Name: name, Err: fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, e.maxBytes)}
	}

	mimeType := DetectMIME(name, src.MIMEType(), data)
	return Result{
		Name: name,
		Attachment: model.Attachment{
			Name:     name,
			MIMEType: mimeType,
			Data:     EncodeDataURI(mimeType, data),
		},
	}
}

// EncodeAll encodes srcs concurrently and returns one Result per source in
// the original selection order. A cancelled context fails the sources that
// have not started yet.
func (e *Encoder) EncodeAll(ctx context.Context, srcs []Source) []Result {
	results := make([]Result, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Name: src.Name(), Err: err}
				return nil
			}
			results[i] = e.Encode(src)
			return nil
		})
	}
	// Workers never return errors; failures live in the results.
	_ = g.Wait()

	for _, r := range results {
		if !r.OK() {
			e.log.Warn("attachment dropped", "file", r.Name, "error", r.Err)
		}
	}
	return results
}

// Successful returns the attachments of the successful results, in order.
func Successful(results []Result) []model.Attachment {
	out := make([]model.Attachment, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Attachment)
		}
	}
	return out
}
