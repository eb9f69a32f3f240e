// Package migrations embeds the SQL schema of the run history database,
// so the binary needs no SQL files on disk.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files at its root.
//
//go:embed *.sql
var FS embed.FS
