// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/masterchat/internal/logging"
)

// =============================================================================
// DATA URI TESTS
// =============================================================================

func TestDataURIRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, size := range []int{0, 1, 2, 3, 255, 256, 1024, 65537} {
		data := make([]byte, size)
		rng.Read(data)

		uri := EncodeDataURI("application/x-test", data)
		mt, decoded, err := DecodeDataURI(uri)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, "application/x-test", mt)
		assert.Equal(t, data, decoded, "size %d", size)
	}
}

func TestEncodeDataURIDefaultsMIME(t *testing.T) {
	assert.Equal(t, "data:application/octet-stream;base64,aGk=", EncodeDataURI("", []byte("hi")))
}

func TestDecodeDataURI(t *testing.T) {
	mt, data, err := DecodeDataURI("data:text/plain;charset=utf-8;base64,cHJpbnQoMSk=")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mt)
	assert.Equal(t, "print(1)", string(data))

	mt, data, err = DecodeDataURI("data:,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mt)
	assert.Equal(t, "hello world", string(data))
}

func TestDecodeDataURIInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"blob:http://localhost/abc",
		"data:text/plain;base64",
		"data:text/plain;base64,!!!not base64!!!",
	} {
		_, _, err := DecodeDataURI(uri)
		assert.ErrorIs(t, err, ErrInvalidDataURI, uri)
	}
}

// =============================================================================
// MIME DETECTION TESTS
// =============================================================================

func TestDetectMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/jpeg", DetectMIME("x.bin", "image/jpeg", nil))
	assert.Equal(t, "text/plain", DetectMIME("x", "text/plain; charset=utf-8", nil))
	assert.Equal(t, "image/png", DetectMIME("noext", "", png))
	assert.Equal(t, "application/pdf", DetectMIME("doc.pdf", "", nil))
	assert.Equal(t, DefaultMIMEType, DetectMIME("noext", "", nil))
}

func TestDetectMIMERejectsMalformedDeclaredType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/png", DetectMIME("noext", "application/x,evil", png))
	assert.Equal(t, "application/pdf", DetectMIME("doc.pdf", "not a type", nil))
	assert.Equal(t, DefaultMIMEType, DetectMIME("noext", "text/plain,", nil))
}

func TestEncodeDataURIMalformedType(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xFF}
	mt, decoded, err := DecodeDataURI(EncodeDataURI("application/x,evil", data))
	require.NoError(t, err)
	assert.Equal(t, DefaultMIMEType, mt)
	assert.Equal(t, data, decoded)
}

// =============================================================================
// ENCODER TESTS
// =============================================================================

func newTestEncoder(opts Options) *Encoder {
	opts.Logger = logging.Discard()
	return NewEncoder(opts)
}

func TestEncodeFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)"), 0600))

	r := newTestEncoder(Options{}).Encode(FromPath(path))
	require.True(t, r.OK(), "err: %v", r.Err)
	assert.Equal(t, "main.py", r.Attachment.Name)

	_, data, err := DecodeDataURI(r.Attachment.Data)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))
}

func TestEncodeMalformedDeclaredTypeRoundTrips(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xFF}
	res := newTestEncoder(Options{}).Encode(FromBytes("blob", "application/x,evil", data))
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, DefaultMIMEType, res.Attachment.MIMEType)

	mt, decoded, err := DecodeDataURI(res.Attachment.Data)
	require.NoError(t, err)
	assert.Equal(t, DefaultMIMEType, mt)
	assert.Equal(t, data, decoded)
}

func TestEncodeMissingFile(t *testing.T) {
	r := newTestEncoder(Options{}).Encode(FromPath(filepath.Join(t.TempDir(), "missing.txt")))
	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err, ErrRead)
	assert.Empty(t, r.Attachment.Data)
}

func TestEncodeTooLarge(t *testing.T) {
	enc := newTestEncoder(Options{MaxBytes: 4})

	assert.True(t, enc.Encode(FromBytes("ok.bin", "", []byte("1234"))).OK())

	r := enc.Encode(FromBytes("big.bin", "", []byte("12345")))
	assert.ErrorIs(t, r.Err, ErrTooLarge)
}

// failingSource fails during the read, after Open succeeded.
type failingSource struct{ name string }

func (f failingSource) Name() string     { return f.name }
func (f failingSource) MIMEType() string { return "text/plain" }
func (f failingSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(errReader{}), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

// slowSource delays its read so completions arrive out of order.
type slowSource struct {
	Source
	delay  time.Duration
	active *atomic.Int32
	peak   *atomic.Int32
}

func (s slowSource) Open() (io.ReadCloser, error) {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	s.active.Add(-1)
	return s.Source.Open()
}

func TestEncodeAllPreservesSelectionOrder(t *testing.T) {
	var active, peak atomic.Int32
	srcs := []Source{
		slowSource{FromBytes("a.txt", "text/plain", []byte("a")), 30 * time.Millisecond, &active, &peak},
		slowSource{FromBytes("b.txt", "text/plain", []byte("b")), 1 * time.Millisecond, &active, &peak},
		failingSource{name: "broken.txt"},
		slowSource{FromBytes("c.txt", "text/plain", []byte("c")), 10 * time.Millisecond, &active, &peak},
	}

	results := newTestEncoder(Options{Concurrency: 2}).EncodeAll(context.Background(), srcs)
	require.Len(t, results, 4)
	assert.Equal(t, "a.txt", results[0].Name)
	assert.Equal(t, "b.txt", results[1].Name)
	assert.False(t, results[2].OK())
	assert.ErrorIs(t, results[2].Err, ErrRead)
	assert.Equal(t, "c.txt", results[3].Name)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	ok := Successful(results)
	require.Len(t, ok, 3)
	var names []string
	for _, a := range ok {
		names = append(names, a.Name)
	}
	assert.Equal(t, "a.txt,b.txt,c.txt", strings.Join(names, ","))
}

func TestEncodeAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestEncoder(Options{}).EncodeAll(ctx, []Source{FromBytes("a.txt", "", []byte("a"))})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, Successful(results))
}
