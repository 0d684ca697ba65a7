package tariff

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	apperrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const entityName = "Tariff"

// TariffRepository defines the interface for tariff data access
type TariffRepository interface {
	UpsertTariff(ctx context.Context, tariff models.Tariff) (*models.Tariff, error)
	FindByKey(ctx context.Context, key models.TariffKey) (*models.Tariff, error)
	FindByStationID(ctx context.Context, stationID string) ([]models.Tariff, error)
	ReadAllByQuery(ctx context.Context, query models.TariffQuery) ([]models.Tariff, error)
	DeleteAllByQuery(ctx context.Context, query models.TariffQuery) ([]models.Tariff, error)
}

// Repository implements TariffRepository. A tariff is stored across three
// tables and always written as a whole: children of an existing tariff are
// replaced, never merged.
type Repository struct {
	*repository.Notifier[models.Tariff]
	db         database.DB
	logger     ectologger.Logger
	tariffs    *repository.Repository[TariffRow, string]
	elements   *repository.Repository[TariffElementRow, string]
	components *repository.Repository[PriceComponentRow, string]
	timeout    time.Duration
}

// NewRepository creates a tariff repository. A positive timeout bounds each
// upsert transaction.
func NewRepository(db database.DB, logger ectologger.Logger, timeout time.Duration) *Repository {
	return &Repository{
		Notifier:   repository.NewNotifier[models.Tariff](),
		db:         db,
		logger:     logger,
		tariffs:    repository.New(db, logger, tariffSchema()),
		elements:   repository.New(db, logger, tariffElementSchema()),
		components: repository.New(db, logger, priceComponentSchema()),
		timeout:    timeout,
	}
}

// UpsertTariff stores the tariff under its natural key. An unseen tariff is
// created with all its elements. A known tariff keeps its surrogate key,
// has its scalar fields overwritten and its elements and price components
// replaced by the candidate's. Either the whole tariff is written or nothing
// is; a rolled back attempt fails with NotApplied and can be retried.
func (r *Repository) UpsertTariff(ctx context.Context, tariff models.Tariff) (*models.Tariff, error) {
	ctx, span := tracing.StartSpan(ctx, "TariffRepository.UpsertTariff")
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	key := tariff.Key()
	logger := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tariff_id":    key.ID,
		"country_code": key.CountryCode,
		"party_id":     key.PartyID,
	})

	var (
		result  *models.Tariff
		created bool
	)
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		now := Now()
		tariff.DatabaseID = ""
		tariff.CreatedAt = now
		tariff.UpdatedAt = now
		candidate := FromTariff(&tariff)

		stored, isNew, err := r.tariffs.ReadOneOrCreate(ctx, keyFilter(key), candidate, repository.ForUpdate())
		if err != nil {
			return err
		}
		created = isNew

		if !created {
			if err := r.deleteChildren(ctx, []string{stored.DatabaseID}); err != nil {
				return err
			}
			if _, err := r.tariffs.UpdateByKey(ctx, stored.DatabaseID, scalarPatch(candidate)); err != nil {
				return err
			}
		}

		elementRows, componentRows := FromElements(stored.DatabaseID, tariff.Elements)
		if _, err := r.elements.CreateMany(ctx, elementRows); err != nil {
			return err
		}
		if _, err := r.components.CreateMany(ctx, componentRows); err != nil {
			return err
		}

		hydrated, err := r.hydrateOne(ctx, stored.DatabaseID)
		if err != nil {
			return err
		}
		if hydrated == nil {
			return apperrors.Newf(apperrors.KindNotFound, entityName, "tariff %s vanished during upsert", key)
		}
		result = hydrated

		eventType := repository.EventUpdated
		if created {
			eventType = repository.EventCreated
		}
		r.EmitAfterCommit(ctx, eventType, *hydrated)
		return nil
	})
	if err != nil {
		err = apperrors.NotApplied(entityName, err)
		tracing.RecordError(span, err)
		outcome := metrics.OutcomeFailed
		if apperrors.IsKind(err, apperrors.KindNotApplied) {
			outcome = metrics.OutcomeNotApplied
		}
		metrics.ObserveUpsert(entityName, outcome, time.Since(start).Seconds())
		logger.WithError(err).Warn("Tariff upsert failed")
		return nil, err
	}

	outcome := metrics.OutcomeUpdated
	if created {
		outcome = metrics.OutcomeCreated
	}
	metrics.ObserveUpsert(entityName, outcome, time.Since(start).Seconds())
	logger.WithFields(map[string]any{
		"database_id": result.DatabaseID,
		"outcome":     outcome,
		"elements":    len(result.Elements),
	}).Info("Tariff upserted")

	return result, nil
}

// deleteChildren removes the price components, then the elements, of the
// given tariffs. Each level is one statement.
func (r *Repository) deleteChildren(ctx context.Context, tariffDatabaseIDs []string) error {
	elements, err := r.elements.ReadAll(ctx, repository.Where(repository.In("tariff_database_id", tariffDatabaseIDs)))
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		return nil
	}

	elementIDs := make([]string, len(elements))
	for i := range elements {
		elementIDs[i] = elements[i].DatabaseID
	}

	if _, err := r.components.DeleteAll(ctx, repository.Where(repository.In("tariff_element_database_id", elementIDs))); err != nil {
		return err
	}
	_, err = r.elements.DeleteAll(ctx, repository.Where(repository.In("database_id", elementIDs)))
	return err
}

func (r *Repository) hydrateOne(ctx context.Context, databaseID string) (*models.Tariff, error) {
	row, err := r.tariffs.FindByKey(ctx, databaseID)
	if err != nil || row == nil {
		return nil, err
	}
	tariffs, err := r.hydrate(ctx, []TariffRow{*row})
	if err != nil {
		return nil, err
	}
	return &tariffs[0], nil
}

// hydrate loads the children of every row with one query per level.
func (r *Repository) hydrate(ctx context.Context, rows []TariffRow) ([]models.Tariff, error) {
	tariffs := make([]models.Tariff, 0, len(rows))
	if len(rows) == 0 {
		return tariffs, nil
	}

	tariffIDs := make([]string, len(rows))
	for i := range rows {
		tariffIDs[i] = rows[i].DatabaseID
	}

	elements, err := r.elements.ReadAll(ctx,
		repository.Where(repository.In("tariff_database_id", tariffIDs)),
		repository.OrderBy("tariff_database_id", "sort_order"),
	)
	if err != nil {
		return nil, err
	}

	elementIDs := make([]string, len(elements))
	elementsByTariff := make(map[string][]TariffElementRow, len(rows))
	for i, element := range elements {
		elementIDs[i] = element.DatabaseID
		elementsByTariff[element.TariffDatabaseID] = append(elementsByTariff[element.TariffDatabaseID], element)
	}

	componentsByElement := make(map[string][]PriceComponentRow, len(elements))
	if len(elementIDs) > 0 {
		components, err := r.components.ReadAll(ctx,
			repository.Where(repository.In("tariff_element_database_id", elementIDs)),
			repository.OrderBy("tariff_element_database_id", "sort_order"),
		)
		if err != nil {
			return nil, err
		}
		for _, component := range components {
			componentsByElement[component.TariffElementDatabaseID] = append(componentsByElement[component.TariffElementDatabaseID], component)
		}
	}

	for i := range rows {
		tariffs = append(tariffs, *ToTariff(&rows[i], elementsByTariff[rows[i].DatabaseID], componentsByElement))
	}
	return tariffs, nil
}

// FindByKey returns the hydrated tariff with the given natural key, or nil.
func (r *Repository) FindByKey(ctx context.Context, key models.TariffKey) (*models.Tariff, error) {
	ctx, span := tracing.StartSpan(ctx, "TariffRepository.FindByKey")
	defer span.End()

	row, err := r.tariffs.ReadOne(ctx, keyFilter(key))
	if err != nil || row == nil {
		return nil, err
	}
	tariffs, err := r.hydrate(ctx, []TariffRow{*row})
	if err != nil {
		return nil, err
	}
	return &tariffs[0], nil
}

func (r *Repository) FindByStationID(ctx context.Context, stationID string) ([]models.Tariff, error) {
	return r.ReadAllByQuery(ctx, models.TariffQuery{StationID: stationID})
}

// ReadAllByQuery lists hydrated tariffs matching the query, most recently
// updated first. An empty query lists every tariff.
func (r *Repository) ReadAllByQuery(ctx context.Context, query models.TariffQuery) ([]models.Tariff, error) {
	ctx, span := tracing.StartSpan(ctx, "TariffRepository.ReadAllByQuery")
	defer span.End()

	rows, err := r.tariffs.ReadAll(ctx, QueryFilter(query), repository.OrderBy("last_updated DESC", "database_id"))
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// DeleteAllByQuery deletes the tariffs matching the query together with
// their elements and price components, and returns what was deleted. An
// empty query fails with PreconditionFailed.
func (r *Repository) DeleteAllByQuery(ctx context.Context, query models.TariffQuery) ([]models.Tariff, error) {
	ctx, span := tracing.StartSpan(ctx, "TariffRepository.DeleteAllByQuery")
	defer span.End()

	filter := QueryFilter(query)
	if filter.IsEmpty() {
		return nil, apperrors.New(apperrors.KindPreconditionFailed, entityName, "delete requires at least one query criterion")
	}

	var deleted []models.Tariff
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		rows, err := r.tariffs.ReadAll(ctx, filter, repository.ForUpdate())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			deleted = []models.Tariff{}
			return nil
		}

		deleted, err = r.hydrate(ctx, rows)
		if err != nil {
			return err
		}

		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].DatabaseID
		}
		if err := r.deleteChildren(ctx, ids); err != nil {
			return err
		}
		if _, err := r.tariffs.DeleteAll(ctx, repository.Where(repository.In("database_id", ids))); err != nil {
			return err
		}

		r.EmitAfterCommit(ctx, repository.EventDeleted, deleted...)
		return nil
	})
	if err != nil {
		err = apperrors.NotApplied(entityName, err)
		tracing.RecordError(span, err)
		return nil, err
	}

	metrics.DeletedRowsTotal.WithLabelValues(entityName).Add(float64(len(deleted)))
	r.logger.WithContext(ctx).WithField("deleted", len(deleted)).Info("Deleted tariffs")
	return deleted, nil
}
