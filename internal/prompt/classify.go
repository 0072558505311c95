// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"path/filepath"
	"strings"

	"github.com/jeranaias/masterchat/internal/model"
)

// Kind is the closed classification of an attachment.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindText
	KindPDF
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// textExtensions are treated as text regardless of the declared MIME type.
// ".ts" in particular is often reported as video/mp2t.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".log": true,
	".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".py": true, ".java": true, ".cpp": true, ".c": true, ".h": true,
	".css": true, ".html": true, ".xml": true, ".json": true,
	".yaml": true, ".yml": true,
}

// IsTextExtension reports whether name ends in a recognised text extension.
func IsTextExtension(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// Classify returns the Kind of an attachment.
func Classify(a model.Attachment) Kind {
	mt := strings.ToLower(strings.TrimSpace(a.MIMEType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "text/"), IsTextExtension(a.Name):
		return KindText
	case mt == "application/pdf":
		return KindPDF
	default:
		return KindUnsupported
	}
}
