package transaction

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	transactionsTable = "transactions"
)

// TransactionRow represents the database row for a charging transaction
type TransactionRow struct {
	DatabaseID        string              `db:"database_id"`
	StationID         string              `db:"station_id"`
	TransactionID     string              `db:"transaction_id"`
	EvseDatabaseID    sql.NullString      `db:"evse_database_id"`
	IsActive          bool                `db:"is_active"`
	ChargingState     sql.NullString      `db:"charging_state"`
	TimeSpentCharging sql.NullInt64       `db:"time_spent_charging"`
	TotalKwh          decimal.NullDecimal `db:"total_kwh"`
	StoppedReason     sql.NullString      `db:"stopped_reason"`
	RemoteStartID     sql.NullInt64       `db:"remote_start_id"`
	CreatedAt         time.Time           `db:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"`
}

// FromTransaction converts a domain model to a database row
func FromTransaction(t *models.Transaction) *TransactionRow {
	row := &TransactionRow{
		DatabaseID:     t.DatabaseID,
		StationID:      t.StationID,
		TransactionID:  t.TransactionID,
		EvseDatabaseID: database.NullString(t.EvseDatabaseID),
		IsActive:       t.IsActive,
		ChargingState:  database.NullString(t.ChargingState),
		StoppedReason:  database.NullString(t.StoppedReason),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.TimeSpentCharging != nil {
		row.TimeSpentCharging = sql.NullInt64{Int64: *t.TimeSpentCharging, Valid: true}
	}
	if t.TotalKwh != nil {
		row.TotalKwh = decimal.NullDecimal{Decimal: *t.TotalKwh, Valid: true}
	}
	if t.RemoteStartID != nil {
		row.RemoteStartID = sql.NullInt64{Int64: int64(*t.RemoteStartID), Valid: true}
	}
	return row
}

// ToTransaction converts a database row to a domain model
func ToTransaction(row *TransactionRow) *models.Transaction {
	t := &models.Transaction{
		DatabaseID:     row.DatabaseID,
		StationID:      row.StationID,
		TransactionID:  row.TransactionID,
		EvseDatabaseID: database.StringPtr(row.EvseDatabaseID),
		IsActive:       row.IsActive,
		ChargingState:  database.StringPtr(row.ChargingState),
		StoppedReason:  database.StringPtr(row.StoppedReason),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.TimeSpentCharging.Valid {
		t.TimeSpentCharging = &row.TimeSpentCharging.Int64
	}
	if row.TotalKwh.Valid {
		t.TotalKwh = &row.TotalKwh.Decimal
	}
	if row.RemoteStartID.Valid {
		remoteStartID := int(row.RemoteStartID.Int64)
		t.RemoteStartID = &remoteStartID
	}
	return t
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
