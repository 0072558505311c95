// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key-value persistence behind the
// conversation store.
//
// Values are opaque strings (the store writes JSON). Persistence is local and
// best-effort: there are no transactions across keys.
//
// # Key Types
//
//   - KV: Get/Set/Delete over string keys
//   - MemoryKV: In-process map, used by tests and --memory runs
//   - FileKV: One JSON file per key, written atomically
//   - SQLiteKV: Single-table SQLite database (pure Go driver)
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendFile, dir)
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
// # Storage Location
//
// By default data lives in ~/.masterchat/data/.
package storage
