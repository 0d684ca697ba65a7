package repository

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	apperrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const insertBatchSize = 500

// Schema describes how a row type maps onto its table.
type Schema[E any, K comparable] struct {
	// Entity names the row in logs and errors, e.g. "Tariff".
	Entity    string
	Table     string
	KeyColumn string
	// Key returns a pointer to the surrogate key field of a row.
	Key func(row *E) *K
	// NewKey generates a surrogate key for rows inserted with a zero key.
	NewKey func() K
}

// Patch maps column names to new values for UpdateByKey.
type Patch map[string]any

type readOptions struct {
	forUpdate bool
	orderBy   []string
}

type ReadOption func(*readOptions)

// ForUpdate locks the selected rows until the surrounding transaction ends.
// It is ignored on stores without row locks.
func ForUpdate() ReadOption {
	return func(o *readOptions) {
		o.forUpdate = true
	}
}

// OrderBy sorts results. Columns may carry a direction, e.g. "created_at DESC".
func OrderBy(columns ...string) ReadOption {
	return func(o *readOptions) {
		o.orderBy = append(o.orderBy, columns...)
	}
}

// Repository implements the generic persistence operations for one table.
// Mutations run inside the transaction carried by the context, or their own
// when there is none, and emit lifecycle events after that transaction
// commits.
type Repository[E any, K comparable] struct {
	*Notifier[E]
	db     database.DB
	logger ectologger.Logger
	schema Schema[E, K]
	rows   *sqlbuilder.Struct
}

func New[E any, K comparable](db database.DB, logger ectologger.Logger, schema Schema[E, K]) *Repository[E, K] {
	return &Repository[E, K]{
		Notifier: NewNotifier[E](),
		db:       db,
		logger:   logger,
		schema:   schema,
		rows:     database.NewStruct(db, new(E)),
	}
}

// UUIDKey generates string surrogate keys.
func UUIDKey() string {
	return uuid.NewString()
}

func (r *Repository[E, K]) DB() database.DB {
	return r.db
}

func (r *Repository[E, K]) Schema() Schema[E, K] {
	return r.schema
}

func (r *Repository[E, K]) assignKey(row *E) {
	key := r.schema.Key(row)
	var zero K
	if *key == zero && r.schema.NewKey != nil {
		*key = r.schema.NewKey()
	}
}

func (r *Repository[E, K]) translate(ctx context.Context, err error, op string) error {
	translated := database.TranslateError(err, r.schema.Entity, op)
	r.logger.WithContext(ctx).WithError(translated).WithFields(map[string]any{
		"entity": r.schema.Entity,
		"table":  r.schema.Table,
		"kind":   string(apperrors.KindOf(translated)),
	}).Warnf("%s %s failed", op, r.schema.Entity)
	return translated
}

// Create inserts row, assigning a surrogate key when it has none.
func (r *Repository[E, K]) Create(ctx context.Context, row *E) (*E, error) {
	ctx, span := tracing.StartSpan(ctx, "repository.Create."+r.schema.Table)
	defer span.End()

	r.assignKey(row)
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		query, args := r.rows.InsertInto(r.schema.Table, row).Build()
		if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
			return r.translate(ctx, err, "create")
		}
		r.EmitAfterCommit(ctx, EventCreated, *row)
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return row, nil
}

// CreateMany bulk inserts rows in batches and returns them with their keys.
func (r *Repository[E, K]) CreateMany(ctx context.Context, rows []E) ([]E, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	ctx, span := tracing.StartSpan(ctx, "repository.CreateMany."+r.schema.Table)
	defer span.End()

	for i := range rows {
		r.assignKey(&rows[i])
	}

	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		exec := database.GetExecutor(ctx, r.db)
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			values := make([]interface{}, 0, end-start)
			for i := start; i < end; i++ {
				values = append(values, &rows[i])
			}
			query, args := r.rows.InsertInto(r.schema.Table, values...).Build()
			if _, err := exec.ExecContext(ctx, query, args...); err != nil {
				return r.translate(ctx, err, "bulk create")
			}
		}
		r.EmitAfterCommit(ctx, EventCreated, rows...)
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return rows, nil
}

// ReadOneOrCreate returns the row matching filter, inserting defaults first
// if no row holds its unique keys. The insert is a single conditional
// statement, so concurrent callers for the same key all observe one row.
// The bool result reports whether this call created it.
func (r *Repository[E, K]) ReadOneOrCreate(ctx context.Context, filter Filter, defaults *E, opts ...ReadOption) (*E, bool, error) {
	if filter.IsEmpty() {
		return nil, false, apperrors.Newf(apperrors.KindPreconditionFailed, r.schema.Entity, "read or create requires a filter")
	}

	ctx, span := tracing.StartSpan(ctx, "repository.ReadOneOrCreate."+r.schema.Table)
	defer span.End()

	r.assignKey(defaults)

	var (
		result  *E
		created bool
	)
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		ib := database.NewInsertBuilder(r.rows.InsertInto(r.schema.Table, defaults)).OnConflictDoNothing()
		query, args := ib.Build()
		res, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
		if err != nil {
			return r.translate(ctx, err, "read or create")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return r.translate(ctx, err, "read or create")
		}
		created = affected > 0

		found, err := r.readOne(ctx, filter, opts...)
		if err != nil {
			return err
		}
		if found == nil {
			// defaults collided on a unique key other than the one filtered on
			return apperrors.Newf(apperrors.KindConstraintViolation, r.schema.Entity, "row conflicts with an existing %s outside the filter", r.schema.Entity)
		}
		result = found
		if created {
			r.EmitAfterCommit(ctx, EventCreated, *found)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, false, err
	}
	return result, created, nil
}

// ReadOne returns the single row matching filter, nil when there is none
// and AmbiguousResult when more than one row matches.
func (r *Repository[E, K]) ReadOne(ctx context.Context, filter Filter, opts ...ReadOption) (*E, error) {
	ctx, span := tracing.StartSpan(ctx, "repository.ReadOne."+r.schema.Table)
	defer span.End()

	row, err := r.readOne(ctx, filter, opts...)
	tracing.RecordError(span, err)
	return row, err
}

// FindByKey returns the row with the given surrogate key, or nil.
func (r *Repository[E, K]) FindByKey(ctx context.Context, key K, opts ...ReadOption) (*E, error) {
	return r.ReadOne(ctx, Where(Eq(r.schema.KeyColumn, key)), opts...)
}

func (r *Repository[E, K]) readOne(ctx context.Context, filter Filter, opts ...ReadOption) (*E, error) {
	sb := r.selectBuilder(filter, opts...)
	sb.Limit(2)

	query, args := sb.Build()
	rows := []E{}
	if err := database.GetExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.translate(ctx, err, "read one")
	}

	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		err := apperrors.Newf(apperrors.KindAmbiguousResult, r.schema.Entity, "more than one %s matched a unique lookup", r.schema.Entity)
		r.logger.WithContext(ctx).WithError(err).WithField("table", r.schema.Table).Error("ambiguous read")
		return nil, err
	}
}

// ReadAll returns every row matching filter. It never returns nil rows on
// success.
func (r *Repository[E, K]) ReadAll(ctx context.Context, filter Filter, opts ...ReadOption) ([]E, error) {
	ctx, span := tracing.StartSpan(ctx, "repository.ReadAll."+r.schema.Table)
	defer span.End()

	query, args := r.selectBuilder(filter, opts...).Build()
	rows := []E{}
	if err := database.GetExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		err = r.translate(ctx, err, "read all")
		tracing.RecordError(span, err)
		return nil, err
	}
	return rows, nil
}

func (r *Repository[E, K]) selectBuilder(filter Filter, opts ...ReadOption) *sqlbuilder.SelectBuilder {
	options := readOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	sb := r.rows.SelectFrom(r.schema.Table)
	if exprs := filter.Build(sb); len(exprs) > 0 {
		sb.Where(exprs...)
	}
	if len(options.orderBy) > 0 {
		sb.OrderBy(options.orderBy...)
	}
	if options.forUpdate && r.db.SupportsRowLocks() {
		sb.ForUpdate()
	}
	return sb
}

// UpdateByKey writes the patched columns of the row with the given key and
// returns the stored row. It fails with NotFound when the key is unknown.
func (r *Repository[E, K]) UpdateByKey(ctx context.Context, key K, patch Patch) (*E, error) {
	ctx, span := tracing.StartSpan(ctx, "repository.UpdateByKey."+r.schema.Table)
	defer span.End()

	var result *E
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		if len(patch) > 0 {
			ub := r.db.Flavor().NewUpdateBuilder()
			ub.Update(r.schema.Table)

			columns := make([]string, 0, len(patch))
			for column := range patch {
				columns = append(columns, column)
			}
			sort.Strings(columns)

			assignments := make([]string, 0, len(columns))
			for _, column := range columns {
				assignments = append(assignments, ub.Assign(column, patch[column]))
			}
			ub.Set(assignments...)
			ub.Where(ub.Equal(r.schema.KeyColumn, key))

			query, args := ub.Build()
			if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
				return r.translate(ctx, err, "update")
			}
		}

		updated, err := r.readOne(ctx, Where(Eq(r.schema.KeyColumn, key)))
		if err != nil {
			return err
		}
		if updated == nil {
			return apperrors.Newf(apperrors.KindNotFound, r.schema.Entity, "%s %v does not exist", r.schema.Entity, key)
		}
		result = updated
		if len(patch) > 0 {
			r.EmitAfterCommit(ctx, EventUpdated, *updated)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// DeleteAll removes every row matching filter and returns them. An empty
// filter is refused so a missing criterion can never wipe the table.
func (r *Repository[E, K]) DeleteAll(ctx context.Context, filter Filter) ([]E, error) {
	if filter.IsEmpty() {
		return nil, apperrors.Newf(apperrors.KindPreconditionFailed, r.schema.Entity, "refusing to delete %s without a filter", r.schema.Entity)
	}

	ctx, span := tracing.StartSpan(ctx, "repository.DeleteAll."+r.schema.Table)
	defer span.End()

	var deleted []E
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		rows, err := r.ReadAll(ctx, filter, ForUpdate())
		if err != nil {
			return err
		}
		deleted = rows
		if len(rows) == 0 {
			return nil
		}

		keys := make([]K, len(rows))
		for i := range rows {
			keys[i] = *r.schema.Key(&rows[i])
		}

		delb := r.db.Flavor().NewDeleteBuilder()
		delb.DeleteFrom(r.schema.Table)
		delb.Where(In(r.schema.KeyColumn, keys)(delb))

		query, args := delb.Build()
		if _, err := database.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
			return r.translate(ctx, err, "delete")
		}

		r.EmitAfterCommit(ctx, EventDeleted, rows...)
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return deleted, nil
}
