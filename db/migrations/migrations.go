package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// FS returns the schema migration set for a database driver, postgres or
// sqlite3. Both sets carry the same versions and tables; they differ only in
// the column types each dialect needs.
func FS(driver string) (fs.FS, error) {
	switch driver {
	case "postgres", "sqlite3":
		return fs.Sub(files, driver)
	default:
		return nil, fmt.Errorf("no migrations for database driver %q", driver)
	}
}
