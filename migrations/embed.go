package migrations

import "embed"

// Files holds the forward-only SQLite schema, applied in version order at startup.
//
//go:embed *.sql
var Files embed.FS
