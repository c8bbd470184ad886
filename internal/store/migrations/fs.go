// Package migrations embeds the versioned schema migration files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
