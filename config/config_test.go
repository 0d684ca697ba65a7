package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment_Defaults(t *testing.T) {
	cfg, err := LoadFromEnvironment()
	require.NoError(t, err)

	assert.Equal(t, "clover", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 5432, cfg.DatabasePort)
	assert.Equal(t, 10*time.Second, cfg.UpsertTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.RedisEnabled)
}

func TestLoadFromEnvironment_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_SQLITE_PATH", "/tmp/clover-test.db")
	t.Setenv("UPSERT_TIMEOUT", "250ms")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_STREAM_MAX_LEN", "42")

	cfg, err := LoadFromEnvironment()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "/tmp/clover-test.db", cfg.DatabaseSQLitePath)
	assert.Equal(t, 250*time.Millisecond, cfg.UpsertTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 42, cfg.RedisStreamMaxLen)
}

func TestLoadFromEnvironment_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := LoadFromEnvironment()
	assert.Error(t, err)
}
