// Package migrations embeds the SQL schema of the configuration-entry store.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// FS exposes the embedded migration files.
func FS() embed.FS {
	return migrationsFS
}

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
