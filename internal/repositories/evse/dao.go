package evse

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	evsesTable = "evses"
)

// EvseRow represents the database row for an EVSE
type EvseRow struct {
	DatabaseID  string        `db:"database_id"`
	ID          int           `db:"id"`
	ConnectorID sql.NullInt64 `db:"connector_id"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// FromEvse converts a domain model to a database row
func FromEvse(e *models.Evse) *EvseRow {
	row := &EvseRow{
		DatabaseID: e.DatabaseID,
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if e.ConnectorID != nil {
		row.ConnectorID = sql.NullInt64{Int64: int64(*e.ConnectorID), Valid: true}
	}
	return row
}

// ToEvse converts a database row to a domain model
func ToEvse(row *EvseRow) *models.Evse {
	e := &models.Evse{
		DatabaseID: row.DatabaseID,
		ID:         row.ID,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.ConnectorID.Valid {
		connectorID := int(row.ConnectorID.Int64)
		e.ConnectorID = &connectorID
	}
	return e
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
