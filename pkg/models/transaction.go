package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a charging session reported by a station.
type Transaction struct {
	DatabaseID        string           `json:"database_id,omitempty"`
	StationID         string           `json:"station_id" validate:"required"`
	TransactionID     string           `json:"transaction_id" validate:"required,max=36"`
	EvseDatabaseID    *string          `json:"evse_database_id,omitempty"`
	IsActive          bool             `json:"is_active"`
	ChargingState     *string          `json:"charging_state,omitempty"`
	TimeSpentCharging *int64           `json:"time_spent_charging,omitempty"`
	TotalKwh          *decimal.Decimal `json:"total_kwh,omitempty"`
	StoppedReason     *string          `json:"stopped_reason,omitempty"`
	RemoteStartID     *int             `json:"remote_start_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at,omitempty"`
}
