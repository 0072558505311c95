// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

// Role tags a turn in the provider history.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Blob is inline binary content.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one unit of a turn. Exactly one of Text or Inline is meaningful:
// a Part with a nil Inline is a text part.
type Part struct {
	Text   string
	Inline *Blob
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart returns an inline binary part.
func InlinePart(mimeType string, data []byte) Part {
	return Part{Inline: &Blob{MIMEType: mimeType, Data: data}}
}

// IsText reports whether p is a text part.
func (p Part) IsText() bool {
	return p.Inline == nil
}

// Turn is one role-tagged entry of the conversation sent to the provider.
type Turn struct {
	Role  Role
	Parts []Part
}

// Request is everything a provider needs for one streaming call.
type Request struct {
	Model             string
	SystemInstruction string
	History           []Turn
	NewTurn           []Part
}

// Turns returns the history followed by the new user turn.
func (r *Request) Turns() []Turn {
	turns := make([]Turn, 0, len(r.History)+1)
	turns = append(turns, r.History...)
	return append(turns, Turn{Role: RoleUser, Parts: r.NewTurn})
}
