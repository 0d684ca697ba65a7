// Package dbtest opens migrated databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/clover/db/migrations"
	"github.com/Ramsey-B/clover/pkg/database"
)

// Logger discards everything.
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewSQLite returns a SQLite database in a temporary directory with every
// migration applied. It is closed when the test ends.
func NewSQLite(t testing.TB) database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.ConnectionConfig{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "clover.db"),
	}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	Migrate(t, db)
	return db
}

func Migrate(t testing.TB, db database.DB) {
	t.Helper()

	source, err := migrations.FS(db.DriverName())
	require.NoError(t, err)

	migrator := database.NewMigrationService(Logger(), &database.MigrationConfig{}, source)
	require.NoError(t, migrator.Migrate(db))
}

// NewPostgres starts a disposable PostgreSQL container and returns a migrated
// connection to it. It skips in -short mode since it needs a Docker daemon.
func NewPostgres(t testing.TB) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "clover",
				"POSTGRES_PASSWORD": "clover",
				"POSTGRES_DB":       "clover",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.Open(ctx, database.ConnectionConfig{
		Driver:   database.DriverPostgres,
		Host:     host,
		Port:     port.Int(),
		User:     "clover",
		Password: "clover",
		Name:     "clover",
		SSLMode:  "disable",
	}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	Migrate(t, db)
	return db
}
