// Package migrations embeds the SQL migrations for every supported dialect.
// Each dialect lives in its own directory named after core/database.Dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
