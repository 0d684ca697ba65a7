package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Executor is the statement surface shared by the database handle and an open
// transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Executor
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
	DriverName() string
	PingContext(ctx context.Context) error
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
	Flavor() sqlbuilder.Flavor
	SupportsRowLocks() bool
	SQLDB() *sql.DB
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
	flavor sqlbuilder.Flavor
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
		flavor: FlavorFor(db.DriverName()),
	}
}

// FlavorFor maps a database/sql driver name onto a sqlbuilder flavor.
func FlavorFor(driverName string) sqlbuilder.Flavor {
	switch driverName {
	case DriverSQLite, "sqlite":
		return sqlbuilder.SQLite
	default:
		return sqlbuilder.PostgreSQL
	}
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}

func (db *DatabaseInstance) Flavor() sqlbuilder.Flavor {
	return db.flavor
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is understood by the
// store. SQLite serializes writers through BEGIN IMMEDIATE instead.
func (db *DatabaseInstance) SupportsRowLocks() bool {
	return db.flavor == sqlbuilder.PostgreSQL
}

func (db *DatabaseInstance) SQLDB() *sql.DB {
	return db.DB.DB
}
