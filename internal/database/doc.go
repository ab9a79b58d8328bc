// Package database provides SQLite-based storage for sync history.
//
// This package implements the SyncDB, which stores one row per sync
// run plus the per-URL download outcomes. The history lets a user see
// when a document was last synced and which URLs keep failing.
//
// SQLite via modernc.org/sqlite keeps the store a single CGO-free
// file, and WAL mode gives good concurrent read performance.
package database
