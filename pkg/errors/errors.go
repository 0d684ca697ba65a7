package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies a store failure so callers can branch on it without
// inspecting driver specific error values.
type Kind string

const (
	KindConstraintViolation Kind = "constraint_violation"
	KindAmbiguousResult     Kind = "ambiguous_result"
	KindNotFound            Kind = "not_found"
	KindPreconditionFailed  Kind = "precondition_failed"
	KindTransactionAborted  Kind = "transaction_aborted"
	KindNotApplied          Kind = "not_applied"
)

// Sentinels for errors.Is. They match any StoreError of the same kind.
var (
	ErrConstraintViolation = &StoreError{Kind: KindConstraintViolation}
	ErrAmbiguousResult     = &StoreError{Kind: KindAmbiguousResult}
	ErrNotFound            = &StoreError{Kind: KindNotFound}
	ErrPreconditionFailed  = &StoreError{Kind: KindPreconditionFailed}
	ErrTransactionAborted  = &StoreError{Kind: KindTransactionAborted}
	ErrNotApplied          = &StoreError{Kind: KindNotApplied}
)

type StoreError struct {
	Kind    Kind
	Entity  string
	Message string
	Err     error
}

func New(kind Kind, entity string, message string) *StoreError {
	return &StoreError{
		Kind:    kind,
		Entity:  entity,
		Message: message,
	}
}

func Newf(kind Kind, entity string, format string, args ...any) *StoreError {
	return New(kind, entity, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an underlying error. A nil err returns nil.
func Wrap(kind Kind, entity string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &StoreError{
		Kind:    kind,
		Entity:  entity,
		Message: message,
		Err:     err,
	}
}

func (e *StoreError) Error() string {
	parts := []string{}
	if e.Entity != "" {
		parts = append(parts, e.Entity)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.Message == "" && t.Err == nil
}

func (e *StoreError) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConstraintViolation:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusBadRequest
	case KindTransactionAborted, KindNotApplied:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (e *StoreError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.StatusCode(), e.Error()).AddMetaValue("kind", string(e.Kind)).AddMetaValue("entity", e.Entity)
}

// KindOf returns the kind of the first StoreError in err's chain, or "".
func KindOf(err error) Kind {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsStoreError(err error) bool {
	var se *StoreError
	return stderrors.As(err, &se)
}

// NotApplied converts an aborted transaction into a NotApplied error telling
// the caller the whole operation can be retried. Every other error is
// returned unchanged.
func NotApplied(entity string, err error) error {
	if !IsKind(err, KindTransactionAborted) {
		return err
	}
	return Wrap(KindNotApplied, entity, err, "operation was not applied and may be retried")
}

// ToHTTPError converts a StoreError into an ectoerror HTTP error. Other
// errors pass through untouched.
func ToHTTPError(err error) error {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.ToHTTPError()
	}
	return err
}
