// Package migrations embeds the schema migrations for every supported dialect.
// Each dialect has its own directory of goose SQL files.
package migrations

import "embed"

// FS holds the migrations, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
