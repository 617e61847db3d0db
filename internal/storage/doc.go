// Package storage persists the derived views of an indexed project in
// SQLite: entity catalog, per-file index entries, embedding vectors, and
// the relationship graph. The driver is selected at build time: the
// default pure-Go build uses modernc.org/sqlite, the sqlite_cgo tag
// switches to mattn/go-sqlite3.
package storage
