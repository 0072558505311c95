// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Source is a raw file handle selected by the user.
type Source interface {
	// Name is the file's base name, shown to the user and the model.
	Name() string
	// MIMEType is the declared type, or "" when unknown.
	MIMEType() string
	// Open returns a reader over the file's bytes.
	Open() (io.ReadCloser, error)
}

type fileSource struct {
	path string
}

// FromPath returns a Source reading the file at path. The MIME type is
// derived from the extension.
func FromPath(path string) Source {
	return fileSource{path: path}
}

func (f fileSource) Name() string { return filepath.Base(f.path) }

func (f fileSource) MIMEType() string {
	return mediaTypeOnly(mime.TypeByExtension(strings.ToLower(filepath.Ext(f.path))))
}

func (f fileSource) Open() (io.ReadCloser, error) { return os.Open(f.path) }

type bytesSource struct {
	name     string
	mimeType string
	data     []byte
}

// FromBytes returns a Source over an in-memory file.
func FromBytes(name, mimeType string, data []byte) Source {
	return bytesSource{name: name, mimeType: mimeType, data: data}
}

func (b bytesSource) Name() string     { return b.name }
func (b bytesSource) MIMEType() string { return b.mimeType }

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// DetectMIME picks the MIME type for a file: the declared type if present,
// then the extension, then content sniffing.
func DetectMIME(name, declared string, data []byte) string {
	if mt := mediaTypeOnly(declared); mt != "" {
		return mt
	}
	if mt := mediaTypeOnly(mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))); mt != "" {
		return mt
	}
	if len(data) > 0 {
		if mt := mediaTypeOnly(http.DetectContentType(data)); mt != "" {
			return mt
		}
	}
	return DefaultMIMEType
}

// mediaTypeOnly strips parameters ("; charset=utf-8") and lowercases.
// Malformed types yield "" so they never reach a data URI.
func mediaTypeOnly(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mt
}
