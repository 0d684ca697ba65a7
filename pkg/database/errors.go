package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/Ramsey-B/clover/pkg/errors"
)

// SQLSTATE classes and codes from the PostgreSQL error appendix.
const (
	pqClassIntegrityConstraint  = pq.ErrorClass("23")
	pqClassTransactionRollback  = pq.ErrorClass("40")
	pqCodeQueryCanceled         = pq.ErrorCode("57014")
	pqCodeInFailedTransaction   = pq.ErrorCode("25P02")
	pqCodeAdminShutdown         = pq.ErrorCode("57P01")
	pqCodeLockNotAvailable      = pq.ErrorCode("55P03")
	pqCodeIdleInTxTimeout       = pq.ErrorCode("25P03")
	pqCodeConnectionFailure     = pq.ErrorCode("08006")
	pqCodeConnectionDoesntExist = pq.ErrorCode("08003")
)

// TranslateError classifies a driver error into a StoreError. Errors that
// are already classified pass through, and errors with no matching class are
// returned unchanged.
func TranslateError(err error, entity string, op string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsStoreError(err) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTransactionAborted, entity, err, op+" cancelled")
	}
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.Wrap(apperrors.KindTransactionAborted, entity, err, op+" lost its transaction")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return translatePostgresError(pqErr, err, entity, op)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return translateSQLiteError(sqliteErr, err, entity, op)
	}

	return err
}

func translatePostgresError(pqErr *pq.Error, err error, entity string, op string) error {
	switch {
	case pqErr.Code.Class() == pqClassIntegrityConstraint:
		msg := op + " violates a constraint"
		if pqErr.Constraint != "" {
			msg = op + " violates constraint " + pqErr.Constraint
		}
		return apperrors.Wrap(apperrors.KindConstraintViolation, entity, err, msg)
	case pqErr.Code.Class() == pqClassTransactionRollback:
		return apperrors.Wrap(apperrors.KindTransactionAborted, entity, err, op+" was rolled back by the store")
	}

	switch pqErr.Code {
	case pqCodeQueryCanceled, pqCodeInFailedTransaction, pqCodeAdminShutdown, pqCodeLockNotAvailable,
		pqCodeIdleInTxTimeout, pqCodeConnectionFailure, pqCodeConnectionDoesntExist:
		return apperrors.Wrap(apperrors.KindTransactionAborted, entity, err, op+" was aborted")
	}
	return err
}

func translateSQLiteError(sqliteErr sqlite3.Error, err error, entity string, op string) error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		return apperrors.Wrap(apperrors.KindConstraintViolation, entity, err, op+" violates a constraint")
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrInterrupt:
		return apperrors.Wrap(apperrors.KindTransactionAborted, entity, err, op+" was aborted")
	}
	return err
}
