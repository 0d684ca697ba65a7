package database

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfig_DSN(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		dsn, err := ConnectionConfig{
			Driver:   DriverPostgres,
			Host:     "db",
			Port:     5432,
			User:     "clover",
			Password: "secret",
			Name:     "clover",
			SSLMode:  "disable",
		}.DSN()
		require.NoError(t, err)
		assert.Equal(t, "host=db port=5432 user=clover password=secret dbname=clover sslmode=disable", dsn)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn, err := ConnectionConfig{Driver: DriverSQLite, SQLitePath: "/tmp/clover.db"}.DSN()
		require.NoError(t, err)
		assert.Equal(t, "file:/tmp/clover.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", dsn)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := ConnectionConfig{Driver: "mysql"}.DSN()
		assert.Error(t, err)
	})
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.SQLite, FlavorFor(DriverSQLite))
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPostgres))
}

func TestJSONB_Scan(t *testing.T) {
	type restrictions struct {
		DayOfWeek []string `json:"day_of_week"`
	}

	var fromString JSONB[*restrictions]
	require.NoError(t, fromString.Scan(`{"day_of_week":["MONDAY"]}`))
	assert.Equal(t, []string{"MONDAY"}, fromString.Data.DayOfWeek)

	var fromBytes JSONB[*restrictions]
	require.NoError(t, fromBytes.Scan([]byte(`{"day_of_week":["FRIDAY"]}`)))
	assert.Equal(t, []string{"FRIDAY"}, fromBytes.Data.DayOfWeek)

	fromNull := NewJSONB(&restrictions{})
	require.NoError(t, fromNull.Scan(nil))
	assert.Nil(t, fromNull.Data)

	var wrongType JSONB[*restrictions]
	assert.Error(t, wrongType.Scan(42))
}
