// Package migrations embeds the SQL schema of every supported store backend.
package migrations

import "embed"

// Postgres holds golang-migrate versioned migrations for PostgreSQL.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLiteSchema is applied verbatim when the embedded SQLite store is opened.
//
//go:embed sqlite/001_initial.sql
var SQLiteSchema string
