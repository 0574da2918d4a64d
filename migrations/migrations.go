// Package migrations embeds the SQL migrations for the Postgres cache backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
