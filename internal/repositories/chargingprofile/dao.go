package chargingprofile

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
)

const (
	chargingProfilesTable  = "charging_profiles"
	chargingSchedulesTable = "charging_schedules"
	salesTariffsTable      = "sales_tariffs"
	chargingNeedsTable     = "charging_needs"
)

type ChargingProfileRow struct {
	DatabaseID             string         `db:"database_id"`
	ID                     int            `db:"id"`
	EvseDatabaseID         string         `db:"evse_database_id"`
	StackLevel             int            `db:"stack_level"`
	ChargingProfilePurpose string         `db:"charging_profile_purpose"`
	ChargingProfileKind    string         `db:"charging_profile_kind"`
	RecurrencyKind         sql.NullString `db:"recurrency_kind"`
	ValidFrom              sql.NullTime   `db:"valid_from"`
	ValidTo                sql.NullTime   `db:"valid_to"`
	TransactionID          sql.NullString `db:"transaction_id"`
	TransactionDatabaseID  sql.NullString `db:"transaction_database_id"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

type ChargingScheduleRow struct {
	DatabaseID                string                                          `db:"database_id"`
	ChargingProfileDatabaseID string                                          `db:"charging_profile_database_id"`
	SortOrder                 int                                             `db:"sort_order"`
	ID                        int                                             `db:"id"`
	StartSchedule             sql.NullTime                                    `db:"start_schedule"`
	Duration                  sql.NullInt64                                   `db:"duration"`
	ChargingRateUnit          string                                          `db:"charging_rate_unit"`
	ChargingSchedulePeriod    database.JSONB[[]models.ChargingSchedulePeriod] `db:"charging_schedule_period"`
	MinChargingRate           decimal.NullDecimal                             `db:"min_charging_rate"`
}

type SalesTariffRow struct {
	DatabaseID                 string                                    `db:"database_id"`
	ChargingScheduleDatabaseID string                                    `db:"charging_schedule_database_id"`
	ID                         int                                       `db:"id"`
	SalesTariffDescription     sql.NullString                            `db:"sales_tariff_description"`
	NumEPriceLevels            sql.NullInt64                             `db:"num_e_price_levels"`
	SalesTariffEntry           database.JSONB[[]models.SalesTariffEntry] `db:"sales_tariff_entry"`
}

type ChargingNeedsRow struct {
	DatabaseID              string                                       `db:"database_id"`
	EvseDatabaseID          string                                       `db:"evse_database_id"`
	TransactionDatabaseID   string                                       `db:"transaction_database_id"`
	RequestedEnergyTransfer string                                       `db:"requested_energy_transfer"`
	DepartureTime           sql.NullTime                                 `db:"departure_time"`
	ACChargingParameters    database.JSONB[*models.ACChargingParameters] `db:"ac_charging_parameters"`
	DCChargingParameters    database.JSONB[*models.DCChargingParameters] `db:"dc_charging_parameters"`
	MaxScheduleTuples       sql.NullInt64                                `db:"max_schedule_tuples"`
	CreatedAt               time.Time                                    `db:"created_at"`
}

func stringKeySchema[E any](entity string, table string, key func(*E) *string) repository.Schema[E, string] {
	return repository.Schema[E, string]{
		Entity:    entity,
		Table:     table,
		KeyColumn: "database_id",
		Key:       key,
		NewKey:    repository.UUIDKey,
	}
}

// FromChargingProfile converts the top level of a profile to a row bound to
// the given EVSE and, optionally, transaction.
func FromChargingProfile(p *models.ChargingProfile, evseDatabaseID string, transactionDatabaseID *string) *ChargingProfileRow {
	row := &ChargingProfileRow{
		DatabaseID:             p.DatabaseID,
		ID:                     p.ID,
		EvseDatabaseID:         evseDatabaseID,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: string(p.ChargingProfilePurpose),
		ChargingProfileKind:    string(p.ChargingProfileKind),
		ValidFrom:              database.NullTime(p.ValidFrom),
		ValidTo:                database.NullTime(p.ValidTo),
		TransactionID:          database.NullString(p.TransactionID),
		TransactionDatabaseID:  database.NullString(transactionDatabaseID),
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if p.RecurrencyKind != nil {
		row.RecurrencyKind = sql.NullString{String: string(*p.RecurrencyKind), Valid: true}
	}
	return row
}

// scalarPatch lists every column an update overwrites. The natural key,
// surrogate key and created_at never change.
func scalarPatch(row *ChargingProfileRow) repository.Patch {
	return repository.Patch{
		"stack_level":              row.StackLevel,
		"charging_profile_purpose": row.ChargingProfilePurpose,
		"charging_profile_kind":    row.ChargingProfileKind,
		"recurrency_kind":          row.RecurrencyKind,
		"valid_from":               row.ValidFrom,
		"valid_to":                 row.ValidTo,
		"transaction_id":           row.TransactionID,
		"transaction_database_id":  row.TransactionDatabaseID,
		"updated_at":               row.UpdatedAt,
	}
}

// FromSchedules maps schedules and their sales tariffs to rows with
// surrogate keys assigned up front.
func FromSchedules(profileDatabaseID string, schedules []models.ChargingSchedule) ([]ChargingScheduleRow, []SalesTariffRow) {
	scheduleRows := make([]ChargingScheduleRow, 0, len(schedules))
	salesTariffRows := []SalesTariffRow{}
	for i, schedule := range schedules {
		scheduleRow := ChargingScheduleRow{
			DatabaseID:                repository.UUIDKey(),
			ChargingProfileDatabaseID: profileDatabaseID,
			SortOrder:                 i,
			ID:                        schedule.ID,
			StartSchedule:             database.NullTime(schedule.StartSchedule),
			Duration:                  database.NullInt(schedule.Duration),
			ChargingRateUnit:          string(schedule.ChargingRateUnit),
			ChargingSchedulePeriod:    database.NewJSONB(schedule.ChargingSchedulePeriod),
			MinChargingRate:           database.NullDecimal(schedule.MinChargingRate),
		}
		scheduleRows = append(scheduleRows, scheduleRow)

		if st := schedule.SalesTariff; st != nil {
			salesTariffRows = append(salesTariffRows, SalesTariffRow{
				DatabaseID:                 repository.UUIDKey(),
				ChargingScheduleDatabaseID: scheduleRow.DatabaseID,
				ID:                         st.ID,
				SalesTariffDescription:     database.NullString(st.SalesTariffDescription),
				NumEPriceLevels:            database.NullInt(st.NumEPriceLevels),
				SalesTariffEntry:           database.NewJSONB(st.SalesTariffEntry),
			})
		}
	}
	return scheduleRows, salesTariffRows
}

// ToChargingProfile assembles a profile from its row, its schedules in sort
// order and the sales tariffs keyed by schedule.
func ToChargingProfile(row *ChargingProfileRow, schedules []ChargingScheduleRow, salesTariffs map[string]SalesTariffRow) *models.ChargingProfile {
	p := &models.ChargingProfile{
		DatabaseID:             row.DatabaseID,
		ID:                     row.ID,
		EvseDatabaseID:         row.EvseDatabaseID,
		StackLevel:             row.StackLevel,
		ChargingProfilePurpose: models.ChargingProfilePurpose(row.ChargingProfilePurpose),
		ChargingProfileKind:    models.ChargingProfileKind(row.ChargingProfileKind),
		ValidFrom:              database.TimePtr(row.ValidFrom),
		ValidTo:                database.TimePtr(row.ValidTo),
		TransactionID:          database.StringPtr(row.TransactionID),
		TransactionDatabaseID:  database.StringPtr(row.TransactionDatabaseID),
		ChargingSchedule:       make([]models.ChargingSchedule, 0, len(schedules)),
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
	if row.RecurrencyKind.Valid {
		kind := models.RecurrencyKind(row.RecurrencyKind.String)
		p.RecurrencyKind = &kind
	}

	for _, scheduleRow := range schedules {
		schedule := models.ChargingSchedule{
			DatabaseID:             scheduleRow.DatabaseID,
			ID:                     scheduleRow.ID,
			StartSchedule:          database.TimePtr(scheduleRow.StartSchedule),
			Duration:               database.IntPtr(scheduleRow.Duration),
			ChargingRateUnit:       models.ChargingRateUnit(scheduleRow.ChargingRateUnit),
			ChargingSchedulePeriod: scheduleRow.ChargingSchedulePeriod.Data,
			MinChargingRate:        database.DecimalPtr(scheduleRow.MinChargingRate),
		}
		if st, ok := salesTariffs[scheduleRow.DatabaseID]; ok {
			schedule.SalesTariff = &models.SalesTariff{
				DatabaseID:             st.DatabaseID,
				ID:                     st.ID,
				SalesTariffDescription: database.StringPtr(st.SalesTariffDescription),
				NumEPriceLevels:        database.IntPtr(st.NumEPriceLevels),
				SalesTariffEntry:       st.SalesTariffEntry.Data,
			}
		}
		p.ChargingSchedule = append(p.ChargingSchedule, schedule)
	}
	return p
}

func FromChargingNeeds(req *models.NotifyEVChargingNeedsRequest, evseDatabaseID string, transactionDatabaseID string) *ChargingNeedsRow {
	needs := req.ChargingNeeds
	return &ChargingNeedsRow{
		EvseDatabaseID:          evseDatabaseID,
		TransactionDatabaseID:   transactionDatabaseID,
		RequestedEnergyTransfer: string(needs.RequestedEnergyTransfer),
		DepartureTime:           database.NullTime(needs.DepartureTime),
		ACChargingParameters:    database.NewJSONB(needs.ACChargingParameters),
		DCChargingParameters:    database.NewJSONB(needs.DCChargingParameters),
		MaxScheduleTuples:       database.NullInt(req.MaxScheduleTuples),
		CreatedAt:               Now(),
	}
}

func ToChargingNeeds(row *ChargingNeedsRow) *models.ChargingNeeds {
	return &models.ChargingNeeds{
		DatabaseID:              row.DatabaseID,
		EvseDatabaseID:          row.EvseDatabaseID,
		TransactionDatabaseID:   row.TransactionDatabaseID,
		RequestedEnergyTransfer: models.EnergyTransferMode(row.RequestedEnergyTransfer),
		DepartureTime:           database.TimePtr(row.DepartureTime),
		ACChargingParameters:    row.ACChargingParameters.Data,
		DCChargingParameters:    row.DCChargingParameters.Data,
		MaxScheduleTuples:       database.IntPtr(row.MaxScheduleTuples),
		CreatedAt:               row.CreatedAt,
	}
}

// QueryFilter composes the operator query into a filter shared by listing
// and deleting.
func QueryFilter(q models.ChargingProfileQuery) repository.Filter {
	return repository.Where(
		repository.OptionalString("evse_database_id", q.EvseDatabaseID),
		repository.OptionalEq("id", q.ID),
		repository.OptionalString("charging_profile_purpose", string(q.ChargingProfilePurpose)),
		repository.OptionalEq("stack_level", q.StackLevel),
		repository.OptionalString("transaction_database_id", q.TransactionDatabaseID),
	)
}

func keyFilter(key models.ChargingProfileKey) repository.Filter {
	return repository.Where(
		repository.Eq("evse_database_id", key.EvseDatabaseID),
		repository.Eq("id", key.ID),
	)
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
