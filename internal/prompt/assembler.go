// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/model"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-3-flash-preview"

	// DefaultSystemInstruction is sent with every request unless overridden.
	DefaultSystemInstruction = "You are MASTERCHATAI, a world-class AI assistant. " +
		"You provide concise, accurate, and helpful information. Format your output in clean Markdown."

	// FallbackText is sent when the new turn would otherwise be empty.
	FallbackText = "Hello"
)

var errNotText = errors.New("content is not valid UTF-8 or UTF-16 text")

// Assembler builds provider requests. It holds no state besides its
// configuration and is safe for concurrent use.
type Assembler struct {
	Model             string
	SystemInstruction string
}

// NewAssembler returns an Assembler, filling in defaults for empty values.
func NewAssembler(modelID, systemInstruction string) *Assembler {
	if modelID == "" {
		modelID = DefaultModel
	}
	if systemInstruction == "" {
		systemInstruction = DefaultSystemInstruction
	}
	return &Assembler{Model: modelID, SystemInstruction: systemInstruction}
}

// Assemble converts the prior messages and the newest user message into a
// Request. Neither argument is modified.
func (a *Assembler) Assemble(history []*model.Message, newMessage *model.Message) *Request {
	req := &Request{
		Model:             a.Model,
		SystemInstruction: a.SystemInstruction,
		History:           make([]Turn, 0, len(history)),
	}

	for _, msg := range history {
		if turn, ok := historyTurn(msg); ok {
			req.History = append(req.History, turn)
		}
	}

	if newMessage != nil {
		req.NewTurn = newTurnParts(newMessage)
	}
	if len(req.NewTurn) == 0 {
		req.NewTurn = []Part{TextPart(FallbackText)}
	}
	return req
}

// historyTurn renders a prior message as a single text turn. Messages with
// no text and no attachments are skipped: providers reject empty turns.
func historyTurn(msg *model.Message) (Turn, bool) {
	role := RoleUser
	if msg.Role == model.RoleAssistant {
		role = RoleModel
	}

	text := msg.Content
	if text == "" {
		if len(msg.Attachments) == 0 {
			return Turn{}, false
		}
		text = SelectedFilesPlaceholder(len(msg.Attachments))
	}
	return Turn{Role: role, Parts: []Part{TextPart(text)}}, true
}

// newTurnParts renders the newest message: its text first, then one part per
// attachment in order.
func newTurnParts(msg *model.Message) []Part {
	parts := make([]Part, 0, 1+len(msg.Attachments))
	if msg.Content != "" {
		parts = append(parts, TextPart(msg.Content))
	}
	for _, att := range msg.Attachments {
		parts = append(parts, attachmentPart(att))
	}
	return parts
}

// attachmentPart is the single switch over the attachment classification.
func attachmentPart(att model.Attachment) Part {
	switch Classify(att) {
	case KindImage:
		_, data, err := attachment.DecodeDataURI(att.Data)
		if err != nil {
			return TextPart(UnreadableFileText(att.Name))
		}
		return InlinePart(strings.ToLower(att.MIMEType), data)

	case KindText:
		text, err := DecodeText(att.Data)
		if err != nil {
			return TextPart(UnreadableFileText(att.Name))
		}
		return TextPart(FileBlock(att.Name, text))

	case KindPDF:
		return TextPart(PDFNoticeText(att.Name))

	default:
		return TextPart(UnsupportedFileText(att.Name, att.MIMEType))
	}
}

// DecodeText decodes a data URI holding text. UTF-8 (with or without a BOM)
// and BOM-marked UTF-16 are accepted.
func DecodeText(dataURI string) (string, error) {
	_, data, err := attachment.DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
	if !hasUTF16BOM(data) {
		return "", errNotText
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}

// =============================================================================
// PLACEHOLDER TEXTS
// =============================================================================

// SelectedFilesPlaceholder stands in for a prior message that had only files.
func SelectedFilesPlaceholder(n int) string {
	if n == 1 {
		return "[Selected 1 file]"
	}
	return fmt.Sprintf("[Selected %d files]", n)
}

// FileBlock wraps the text of a file in start and end markers.
func FileBlock(name, text string) string {
	return fmt.Sprintf("--- Content of file %q ---\n%s\n--- End of file ---", name, text)
}

// UnreadableFileText replaces a text attachment that could not be decoded.
func UnreadableFileText(name string) string {
	return fmt.Sprintf("[Could not read file %q]", name)
}

// PDFNoticeText replaces a PDF attachment; its bytes are not parsed.
func PDFNoticeText(name string) string {
	return fmt.Sprintf("[PDF attached: %q. Text extraction from PDF files is limited, so its contents "+
		"are not included. Please say what you would like to know about this document, or paste the relevant text.]", name)
}

// UnsupportedFileText replaces an attachment of an unsupported type.
func UnsupportedFileText(name, mimeType string) string {
	if mimeType == "" {
		mimeType = "unknown type"
	}
	return fmt.Sprintf("[Unsupported file attached: %q (%s)]", name, mimeType)
}
