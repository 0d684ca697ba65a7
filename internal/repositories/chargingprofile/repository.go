package chargingprofile

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/evse"
	"github.com/Ramsey-B/clover/internal/repositories/transaction"
	"github.com/Ramsey-B/clover/pkg/database"
	apperrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	entityName        = "ChargingProfile"
	needsEntityName   = "ChargingNeeds"
	scheduleKeyColumn = "charging_profile_database_id"
)

// ChargingProfileRepository defines the interface for charging profile data access
type ChargingProfileRepository interface {
	CreateOrUpdateChargingProfile(ctx context.Context, profile models.ChargingProfile, evseDatabaseID string, transactionDatabaseID *string) (*models.ChargingProfile, error)
	CreateChargingNeeds(ctx context.Context, req models.NotifyEVChargingNeedsRequest, stationID string) (*models.ChargingNeeds, error)
	FindChargingNeedsByEvseAndTransaction(ctx context.Context, evseDatabaseID string, transactionDatabaseID string) ([]models.ChargingNeeds, error)
	FindByKey(ctx context.Context, key models.ChargingProfileKey) (*models.ChargingProfile, error)
	ReadAllByQuery(ctx context.Context, query models.ChargingProfileQuery) ([]models.ChargingProfile, error)
	DeleteAllByQuery(ctx context.Context, query models.ChargingProfileQuery) ([]models.ChargingProfile, error)
}

// Repository implements ChargingProfileRepository. A profile owns its
// schedules and their sales tariffs; it only references its EVSE and
// transaction.
type Repository struct {
	*repository.Notifier[models.ChargingProfile]
	db           database.DB
	logger       ectologger.Logger
	profiles     *repository.Repository[ChargingProfileRow, string]
	schedules    *repository.Repository[ChargingScheduleRow, string]
	salesTariffs *repository.Repository[SalesTariffRow, string]
	needs        *repository.Repository[ChargingNeedsRow, string]
	evses        *evse.Repository
	transactions *transaction.Repository
	timeout      time.Duration
}

func NewRepository(db database.DB, logger ectologger.Logger, evses *evse.Repository, transactions *transaction.Repository, timeout time.Duration) *Repository {
	return &Repository{
		Notifier: repository.NewNotifier[models.ChargingProfile](),
		db:       db,
		logger:   logger,
		profiles: repository.New(db, logger, stringKeySchema(entityName, chargingProfilesTable, func(row *ChargingProfileRow) *string {
			return &row.DatabaseID
		})),
		schedules: repository.New(db, logger, stringKeySchema("ChargingSchedule", chargingSchedulesTable, func(row *ChargingScheduleRow) *string {
			return &row.DatabaseID
		})),
		salesTariffs: repository.New(db, logger, stringKeySchema("SalesTariff", salesTariffsTable, func(row *SalesTariffRow) *string {
			return &row.DatabaseID
		})),
		needs: repository.New(db, logger, stringKeySchema(needsEntityName, chargingNeedsTable, func(row *ChargingNeedsRow) *string {
			return &row.DatabaseID
		})),
		evses:        evses,
		transactions: transactions,
		timeout:      timeout,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, func() {}
}

// CreateOrUpdateChargingProfile stores the profile for the EVSE under the
// natural key {evse, id}. An existing profile keeps its surrogate key and
// has its schedules and sales tariffs replaced. The EVSE, and the
// transaction when one is referenced, must already exist.
func (r *Repository) CreateOrUpdateChargingProfile(ctx context.Context, profile models.ChargingProfile, evseDatabaseID string, transactionDatabaseID *string) (*models.ChargingProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "ChargingProfileRepository.CreateOrUpdateChargingProfile")
	defer span.End()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	profile.EvseDatabaseID = evseDatabaseID
	key := profile.Key()
	logger := r.logger.WithContext(ctx).WithFields(map[string]any{
		"evse_database_id":    key.EvseDatabaseID,
		"charging_profile_id": key.ID,
	})

	var (
		result  *models.ChargingProfile
		created bool
	)
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		if err := r.checkAssociations(ctx, evseDatabaseID, transactionDatabaseID); err != nil {
			return err
		}

		now := Now()
		profile.DatabaseID = ""
		profile.CreatedAt = now
		profile.UpdatedAt = now
		candidate := FromChargingProfile(&profile, evseDatabaseID, transactionDatabaseID)

		stored, isNew, err := r.profiles.ReadOneOrCreate(ctx, keyFilter(key), candidate, repository.ForUpdate())
		if err != nil {
			return err
		}
		created = isNew

		if !created {
			if _, err := r.profiles.UpdateByKey(ctx, stored.DatabaseID, scalarPatch(candidate)); err != nil {
				return err
			}
			if err := r.deleteChildren(ctx, []string{stored.DatabaseID}); err != nil {
				return err
			}
		}

		scheduleRows, salesTariffRows := FromSchedules(stored.DatabaseID, profile.ChargingSchedule)
		if _, err := r.schedules.CreateMany(ctx, scheduleRows); err != nil {
			return err
		}
		if _, err := r.salesTariffs.CreateMany(ctx, salesTariffRows); err != nil {
			return err
		}

		row, err := r.profiles.FindByKey(ctx, stored.DatabaseID)
		if err != nil {
			return err
		}
		if row == nil {
			return apperrors.Newf(apperrors.KindNotFound, entityName, "charging profile %d vanished during upsert", key.ID)
		}
		hydrated, err := r.hydrate(ctx, []ChargingProfileRow{*row})
		if err != nil {
			return err
		}
		result = &hydrated[0]

		eventType := repository.EventUpdated
		if created {
			eventType = repository.EventCreated
		}
		r.EmitAfterCommit(ctx, eventType, *result)
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
		logger.WithError(err).Warn("Charging profile upsert failed")
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
		"schedules":   len(result.ChargingSchedule),
	}).Info("Charging profile upserted")

	return result, nil
}

func (r *Repository) checkAssociations(ctx context.Context, evseDatabaseID string, transactionDatabaseID *string) error {
	station, err := r.evses.FindByDatabaseID(ctx, evseDatabaseID)
	if err != nil {
		return err
	}
	if station == nil {
		return apperrors.Newf(apperrors.KindPreconditionFailed, entityName, "EVSE %s does not exist", evseDatabaseID)
	}

	if transactionDatabaseID == nil {
		return nil
	}
	tx, err := r.transactions.FindByDatabaseID(ctx, *transactionDatabaseID)
	if err != nil {
		return err
	}
	if tx == nil {
		return apperrors.Newf(apperrors.KindPreconditionFailed, entityName, "transaction %s does not exist", *transactionDatabaseID)
	}
	return nil
}

// deleteChildren removes the sales tariffs, then the schedules, of the
// given profiles. Each level is one statement.
func (r *Repository) deleteChildren(ctx context.Context, profileDatabaseIDs []string) error {
	schedules, err := r.schedules.ReadAll(ctx, repository.Where(repository.In(scheduleKeyColumn, profileDatabaseIDs)))
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		return nil
	}

	scheduleIDs := make([]string, len(schedules))
	for i := range schedules {
		scheduleIDs[i] = schedules[i].DatabaseID
	}

	if _, err := r.salesTariffs.DeleteAll(ctx, repository.Where(repository.In("charging_schedule_database_id", scheduleIDs))); err != nil {
		return err
	}
	_, err = r.schedules.DeleteAll(ctx, repository.Where(repository.In("database_id", scheduleIDs)))
	return err
}

// hydrate loads the schedules and sales tariffs of every row with one query
// per level.
func (r *Repository) hydrate(ctx context.Context, rows []ChargingProfileRow) ([]models.ChargingProfile, error) {
	profiles := make([]models.ChargingProfile, 0, len(rows))
	if len(rows) == 0 {
		return profiles, nil
	}

	profileIDs := make([]string, len(rows))
	for i := range rows {
		profileIDs[i] = rows[i].DatabaseID
	}

	schedules, err := r.schedules.ReadAll(ctx,
		repository.Where(repository.In(scheduleKeyColumn, profileIDs)),
		repository.OrderBy(scheduleKeyColumn, "sort_order"),
	)
	if err != nil {
		return nil, err
	}

	scheduleIDs := make([]string, len(schedules))
	schedulesByProfile := make(map[string][]ChargingScheduleRow, len(rows))
	for i, schedule := range schedules {
		scheduleIDs[i] = schedule.DatabaseID
		schedulesByProfile[schedule.ChargingProfileDatabaseID] = append(schedulesByProfile[schedule.ChargingProfileDatabaseID], schedule)
	}

	salesTariffsBySchedule := make(map[string]SalesTariffRow, len(schedules))
	if len(scheduleIDs) > 0 {
		salesTariffs, err := r.salesTariffs.ReadAll(ctx, repository.Where(repository.In("charging_schedule_database_id", scheduleIDs)))
		if err != nil {
			return nil, err
		}
		for _, st := range salesTariffs {
			salesTariffsBySchedule[st.ChargingScheduleDatabaseID] = st
		}
	}

	for i := range rows {
		profiles = append(profiles, *ToChargingProfile(&rows[i], schedulesByProfile[rows[i].DatabaseID], salesTariffsBySchedule))
	}
	return profiles, nil
}

// CreateChargingNeeds records a vehicle's charging needs against the active
// transaction on the reporting EVSE. The EVSE is created on first sight, but
// a missing active transaction fails with PreconditionFailed and leaves
// nothing behind.
func (r *Repository) CreateChargingNeeds(ctx context.Context, req models.NotifyEVChargingNeedsRequest, stationID string) (*models.ChargingNeeds, error) {
	ctx, span := tracing.StartSpan(ctx, "ChargingProfileRepository.CreateChargingNeeds")
	defer span.End()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var result *models.ChargingNeeds
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		station, _, err := r.evses.ReadOrCreate(ctx, req.EvseID, nil)
		if err != nil {
			return err
		}

		active, err := r.transactions.FindActive(ctx, stationID, station.DatabaseID)
		if err != nil {
			return err
		}
		if active == nil {
			return apperrors.Newf(apperrors.KindPreconditionFailed, needsEntityName,
				"no active transaction found on station %s evse %d", stationID, req.EvseID)
		}

		row, err := r.needs.Create(ctx, FromChargingNeeds(&req, station.DatabaseID, active.DatabaseID))
		if err != nil {
			return err
		}
		result = ToChargingNeeds(row)
		return nil
	})
	if err != nil {
		err = apperrors.NotApplied(needsEntityName, err)
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"station_id": stationID,
			"evse_id":    req.EvseID,
		}).Warn("Charging needs not recorded")
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"station_id":              stationID,
		"evse_database_id":        result.EvseDatabaseID,
		"transaction_database_id": result.TransactionDatabaseID,
	}).Info("Charging needs recorded")
	return result, nil
}

func (r *Repository) FindChargingNeedsByEvseAndTransaction(ctx context.Context, evseDatabaseID string, transactionDatabaseID string) ([]models.ChargingNeeds, error) {
	rows, err := r.needs.ReadAll(ctx, repository.Where(
		repository.Eq("evse_database_id", evseDatabaseID),
		repository.Eq("transaction_database_id", transactionDatabaseID),
	), repository.OrderBy("created_at"))
	if err != nil {
		return nil, err
	}

	needs := make([]models.ChargingNeeds, 0, len(rows))
	for i := range rows {
		needs = append(needs, *ToChargingNeeds(&rows[i]))
	}
	return needs, nil
}

// FindByKey returns the hydrated profile with the given natural key, or nil.
func (r *Repository) FindByKey(ctx context.Context, key models.ChargingProfileKey) (*models.ChargingProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "ChargingProfileRepository.FindByKey")
	defer span.End()

	row, err := r.profiles.ReadOne(ctx, keyFilter(key))
	if err != nil || row == nil {
		return nil, err
	}
	profiles, err := r.hydrate(ctx, []ChargingProfileRow{*row})
	if err != nil {
		return nil, err
	}
	return &profiles[0], nil
}

func (r *Repository) ReadAllByQuery(ctx context.Context, query models.ChargingProfileQuery) ([]models.ChargingProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "ChargingProfileRepository.ReadAllByQuery")
	defer span.End()

	rows, err := r.profiles.ReadAll(ctx, QueryFilter(query), repository.OrderBy("evse_database_id", "stack_level", "id"))
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// DeleteAllByQuery deletes the matching profiles with their schedules and
// sales tariffs and returns them. An empty query fails with
// PreconditionFailed.
func (r *Repository) DeleteAllByQuery(ctx context.Context, query models.ChargingProfileQuery) ([]models.ChargingProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "ChargingProfileRepository.DeleteAllByQuery")
	defer span.End()

	filter := QueryFilter(query)
	if filter.IsEmpty() {
		return nil, apperrors.New(apperrors.KindPreconditionFailed, entityName, "delete requires at least one query criterion")
	}

	deleted := []models.ChargingProfile{}
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		rows, err := r.profiles.ReadAll(ctx, filter, repository.ForUpdate())
		if err != nil || len(rows) == 0 {
			return err
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
		if _, err := r.profiles.DeleteAll(ctx, repository.Where(repository.In("database_id", ids))); err != nil {
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
	r.logger.WithContext(ctx).WithField("deleted", len(deleted)).Info("Deleted charging profiles")
	return deleted, nil
}
