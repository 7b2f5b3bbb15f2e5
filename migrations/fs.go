// Package migrations embeds goose SQL migrations for both databases.
package migrations

import "embed"

// FS holds identity/*.sql (PostgreSQL, identityd) and local/*.sql (SQLite, device store).
//
//go:embed identity/*.sql local/*.sql
var FS embed.FS
