package migrations

import "embed"

// Files holds the schema migrations, applied in lexical order
// (001_init.sql, 002_calendar_shares.sql, ...).
//
//go:embed *.sql
var Files embed.FS
