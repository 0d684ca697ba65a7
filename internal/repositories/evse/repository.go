package evse

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// EvseRepository defines the interface for EVSE data access
type EvseRepository interface {
	ReadOrCreate(ctx context.Context, id int, connectorID *int) (*models.Evse, bool, error)
	FindByDatabaseID(ctx context.Context, databaseID string) (*models.Evse, error)
	Find(ctx context.Context, id int, connectorID *int) (*models.Evse, error)
}

// Repository implements EvseRepository. EVSEs are linked to, never owned
// by, the composites stored elsewhere.
type Repository struct {
	rows   *repository.Repository[EvseRow, string]
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		rows: repository.New(db, logger, repository.Schema[EvseRow, string]{
			Entity:    "Evse",
			Table:     evsesTable,
			KeyColumn: "database_id",
			Key:       func(row *EvseRow) *string { return &row.DatabaseID },
			NewKey:    repository.UUIDKey,
		}),
		logger: logger,
	}
}

func naturalKey(id int, connectorID *int) repository.Filter {
	return repository.Where(
		repository.Eq("id", id),
		repository.EqOrNull("connector_id", connectorID),
	)
}

// ReadOrCreate returns the EVSE with the given natural key, creating it when
// it is unseen.
func (r *Repository) ReadOrCreate(ctx context.Context, id int, connectorID *int) (*models.Evse, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "EvseRepository.ReadOrCreate")
	defer span.End()

	now := Now()
	defaults := FromEvse(&models.Evse{ID: id, ConnectorID: connectorID, CreatedAt: now, UpdatedAt: now})

	row, created, err := r.rows.ReadOneOrCreate(ctx, naturalKey(id, connectorID), defaults)
	if err != nil {
		return nil, false, err
	}

	if created {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"evse_id":     id,
			"database_id": row.DatabaseID,
		}).Debug("Created EVSE")
	}
	return ToEvse(row), created, nil
}

func (r *Repository) FindByDatabaseID(ctx context.Context, databaseID string) (*models.Evse, error) {
	row, err := r.rows.FindByKey(ctx, databaseID)
	if err != nil || row == nil {
		return nil, err
	}
	return ToEvse(row), nil
}

func (r *Repository) Find(ctx context.Context, id int, connectorID *int) (*models.Evse, error) {
	row, err := r.rows.ReadOne(ctx, naturalKey(id, connectorID))
	if err != nil || row == nil {
		return nil, err
	}
	return ToEvse(row), nil
}
