// Package migrations embeds the SQL schema migrations for the cache DB.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
