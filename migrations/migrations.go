// Package migrations embeds the SQL schema for the automation engine.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
