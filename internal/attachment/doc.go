// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachment turns user-selected files into model.Attachment values.
//
// File bytes are carried as base64 data URIs so they can live inside the
// JSON-encoded conversation state. Encoding is lossless: DecodeDataURI is the
// exact inverse of EncodeDataURI for arbitrary bytes.
//
// # Key Types
//
//   - Source: A file handle (name, declared MIME type, reader)
//   - Encoder: Reads sources, enforces the size cap, builds attachments
//   - Result: Outcome of encoding one source; failed results carry Err
//
// # Usage
//
//	enc := attachment.NewEncoder(attachment.Options{})
//	results := enc.EncodeAll(ctx, []attachment.Source{
//	    attachment.FromPath("notes.md"),
//	    attachment.FromPath("photo.png"),
//	})
//	pending = append(pending, attachment.Successful(results)...)
package attachment
