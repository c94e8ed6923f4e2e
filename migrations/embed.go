// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

// FS holds the numbered *.up.sql / *.down.sql pairs
//
//go:embed *.sql
var FS embed.FS
