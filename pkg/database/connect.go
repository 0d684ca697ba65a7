package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type ConnectionConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the connection string for the configured driver. SQLite
// connections enforce foreign keys and take the write lock at BEGIN so
// concurrent writers queue instead of failing mid transaction.
func (c ConnectionConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode), nil
	case DriverSQLite:
		params := url.Values{}
		params.Set("_foreign_keys", "on")
		params.Set("_busy_timeout", "5000")
		params.Set("_txlock", "immediate")
		params.Set("_journal_mode", "WAL")
		return "file:" + c.SQLitePath + "?" + params.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open connects to the configured store and wraps it in a DatabaseInstance.
func Open(ctx context.Context, cfg ConnectionConfig, logger ectologger.Logger) (DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("driver", cfg.Driver).Error("failed to connect to database")
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewDatabaseInstance(conn, logger), nil
}
