// Package migrations embeds the SQL schema of every supported database engine.
package migrations

import "embed"

// FS holds the migration files, one directory per engine.
//
//go:embed sqlite/*.sql postgresql/*.sql mysql/*.sql
var FS embed.FS

// Dir returns the directory inside FS holding the migrations of a driver.
func Dir(driver string) string {
	switch driver {
	case "postgres":
		return "postgresql"
	case "mysql":
		return "mysql"
	default:
		return "sqlite"
	}
}
