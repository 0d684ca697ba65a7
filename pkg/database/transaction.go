package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/Ramsey-B/clover/pkg/errors"
)

type TxContextKey string

const txKey = TxContextKey("tx-context-key")

type Tx interface {
	Executor
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// OnCommit registers fn to run after the outermost transaction commits.
	// Hooks are dropped when the transaction rolls back.
	OnCommit(fn func())
}

// Transaction wraps sqlx.Tx. The caller that began it owns Commit and
// Rollback; calls that join it through the context get a participant.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	mu       sync.Mutex
	isClosed bool
	hooks    []func()
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

// GetTx returns the open transaction carried by ctx, or begins a new one and
// stores it on the returned context.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if owner, ok := TxFromContext(ctx); ok {
		return ctx, &participant{Transaction: owner}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, TranslateError(err, "", "begin transaction")
	}

	newTx := NewTx(tx, logger)
	ctx = context.WithValue(ctx, txKey, newTx)
	return ctx, newTx, nil
}

// TxFromContext returns the open transaction carried by ctx.
func TxFromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(txKey).(*Transaction)
	if !ok || tx == nil || !tx.IsOpen() {
		return nil, false
	}
	return tx, true
}

// GetExecutor resolves where a statement should run: the transaction carried
// by ctx when there is one, the database otherwise.
func GetExecutor(ctx context.Context, db DB) Executor {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

// WithTx runs fn inside a transaction. If ctx already carries one, fn joins
// it and the outer caller decides the outcome.
func WithTx(ctx context.Context, db DB, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.GetTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (t *Transaction) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.isClosed
}

func (t *Transaction) OnCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return nil
	}
	t.isClosed = true
	t.hooks = nil
	t.mu.Unlock()

	err := t.Tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return TranslateError(err, "", "rollback transaction")
	}
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		return nil
	}
	t.isClosed = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		if classified := TranslateError(err, "", "commit transaction"); apperrors.IsStoreError(classified) {
			return classified
		}
		return apperrors.Wrap(apperrors.KindTransactionAborted, "", err, "commit transaction")
	}

	for _, hook := range hooks {
		hook()
	}
	return nil
}

// participant joins a transaction owned by an outer caller. Commit and
// Rollback are left to the owner; a failing participant returns its error
// and the owner rolls back.
type participant struct {
	*Transaction
}

func (p *participant) Commit(ctx context.Context) error {
	return nil
}

func (p *participant) Rollback(ctx context.Context) error {
	return nil
}
