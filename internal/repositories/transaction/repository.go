package transaction

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// TransactionRepository defines the interface for charging transaction data access
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error)
	FindByDatabaseID(ctx context.Context, databaseID string) (*models.Transaction, error)
	FindByTransactionID(ctx context.Context, stationID string, transactionID string) (*models.Transaction, error)
	FindActive(ctx context.Context, stationID string, evseDatabaseID string) (*models.Transaction, error)
	SetActive(ctx context.Context, databaseID string, active bool) (*models.Transaction, error)
}

// Repository implements TransactionRepository
type Repository struct {
	rows   *repository.Repository[TransactionRow, string]
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		rows: repository.New(db, logger, repository.Schema[TransactionRow, string]{
			Entity:    "Transaction",
			Table:     transactionsTable,
			KeyColumn: "database_id",
			Key:       func(row *TransactionRow) *string { return &row.DatabaseID },
			NewKey:    repository.UUIDKey,
		}),
		logger: logger,
	}
}

// Create records a transaction. A second transaction with the same station
// and transaction id fails with ConstraintViolation.
func (r *Repository) Create(ctx context.Context, transaction *models.Transaction) (*models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "TransactionRepository.Create")
	defer span.End()

	now := Now()
	transaction.CreatedAt = now
	transaction.UpdatedAt = now

	row, err := r.rows.Create(ctx, FromTransaction(transaction))
	if err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"station_id":     row.StationID,
		"transaction_id": row.TransactionID,
		"database_id":    row.DatabaseID,
	}).Debug("Created transaction")

	return ToTransaction(row), nil
}

func (r *Repository) FindByDatabaseID(ctx context.Context, databaseID string) (*models.Transaction, error) {
	row, err := r.rows.FindByKey(ctx, databaseID)
	if err != nil || row == nil {
		return nil, err
	}
	return ToTransaction(row), nil
}

func (r *Repository) FindByTransactionID(ctx context.Context, stationID string, transactionID string) (*models.Transaction, error) {
	row, err := r.rows.ReadOne(ctx, repository.Where(
		repository.Eq("station_id", stationID),
		repository.Eq("transaction_id", transactionID),
	))
	if err != nil || row == nil {
		return nil, err
	}
	return ToTransaction(row), nil
}

// FindActive returns the most recent active transaction on the EVSE of a
// station, or nil when the EVSE is idle.
func (r *Repository) FindActive(ctx context.Context, stationID string, evseDatabaseID string) (*models.Transaction, error) {
	ctx, span := tracing.StartSpan(ctx, "TransactionRepository.FindActive")
	defer span.End()

	rows, err := r.rows.ReadAll(ctx, repository.Where(
		repository.Eq("station_id", stationID),
		repository.Eq("evse_database_id", evseDatabaseID),
		repository.Eq("is_active", true),
	), repository.OrderBy("created_at DESC"))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"station_id":       stationID,
			"evse_database_id": evseDatabaseID,
			"active_count":     len(rows),
		}).Warn("More than one active transaction on EVSE, using the most recent")
	}
	return ToTransaction(&rows[0]), nil
}

// SetActive marks a transaction as started or ended.
func (r *Repository) SetActive(ctx context.Context, databaseID string, active bool) (*models.Transaction, error) {
	row, err := r.rows.UpdateByKey(ctx, databaseID, repository.Patch{
		"is_active":  active,
		"updated_at": Now(),
	})
	if err != nil {
		return nil, err
	}
	return ToTransaction(row), nil
}
