// Package coordinatormigrations embeds the SQL migration files for the
// marketplace coordinator's Postgres schema.
package coordinatormigrations

import "embed"

//go:embed *.sql
var FS embed.FS
