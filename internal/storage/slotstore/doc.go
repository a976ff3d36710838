// Package slotstore persists encoded slot files.
//
// A Store maps slot names to opaque byte blobs. Three backends exist:
//
//   - FileStore keeps one file per slot in a directory, written via a
//     temp file and rename so readers never observe a partial slot.
//   - BadgerStore keeps slots in an embedded Badger database, for hosts
//     that save often and want compaction and GC handled for them.
//   - SQLiteStore keeps one row per slot in a single database file.
//
// SealedStore wraps any backend and encrypts slots at rest with an
// AEAD cipher from pkg/crypto/adaptive.
//
// Watcher reports slot files appearing, changing or disappearing in a
// FileStore directory.
package slotstore
