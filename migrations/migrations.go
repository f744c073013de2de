// Package migrations embeds the SQL schema migrations applied by pkg/database.Migrator.
package migrations

import "embed"

// SQLs holds the numbered golang-migrate files (NNNNNN_name.up.sql / .down.sql).
//
//go:embed *.sql
var SQLs embed.FS
