package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ChargingProfilePurpose string

const (
	PurposeChargingStationExternalConstraints ChargingProfilePurpose = "ChargingStationExternalConstraints"
	PurposeChargingStationMaxProfile          ChargingProfilePurpose = "ChargingStationMaxProfile"
	PurposeTxDefaultProfile                   ChargingProfilePurpose = "TxDefaultProfile"
	PurposeTxProfile                          ChargingProfilePurpose = "TxProfile"
)

type ChargingProfileKind string

const (
	KindAbsolute  ChargingProfileKind = "Absolute"
	KindRecurring ChargingProfileKind = "Recurring"
	KindRelative  ChargingProfileKind = "Relative"
)

type RecurrencyKind string

const (
	RecurrencyDaily  RecurrencyKind = "Daily"
	RecurrencyWeekly RecurrencyKind = "Weekly"
)

type ChargingRateUnit string

const (
	ChargingRateUnitW ChargingRateUnit = "W"
	ChargingRateUnitA ChargingRateUnit = "A"
)

// ChargingProfileKey is the natural key of a charging profile: the profile
// id is only unique per EVSE.
type ChargingProfileKey struct {
	EvseDatabaseID string `json:"evse_database_id"`
	ID             int    `json:"id"`
}

func (k ChargingProfileKey) String() string {
	return fmt.Sprintf("%s/%d", k.EvseDatabaseID, k.ID)
}

// ChargingProfile limits the power an EVSE may deliver over time. It owns
// its schedules and their sales tariffs.
type ChargingProfile struct {
	DatabaseID             string                 `json:"database_id,omitempty"`
	ID                     int                    `json:"id" validate:"gte=0"`
	EvseDatabaseID         string                 `json:"evse_database_id,omitempty"`
	StackLevel             int                    `json:"stack_level" validate:"gte=0"`
	ChargingProfilePurpose ChargingProfilePurpose `json:"charging_profile_purpose" validate:"required,oneof=ChargingStationExternalConstraints ChargingStationMaxProfile TxDefaultProfile TxProfile"`
	ChargingProfileKind    ChargingProfileKind    `json:"charging_profile_kind" validate:"required,oneof=Absolute Recurring Relative"`
	RecurrencyKind         *RecurrencyKind        `json:"recurrency_kind,omitempty" validate:"omitempty,oneof=Daily Weekly"`
	ValidFrom              *time.Time             `json:"valid_from,omitempty"`
	ValidTo                *time.Time             `json:"valid_to,omitempty"`
	TransactionID          *string                `json:"transaction_id,omitempty"`
	TransactionDatabaseID  *string                `json:"transaction_database_id,omitempty"`
	ChargingSchedule       []ChargingSchedule     `json:"charging_schedule" validate:"required,min=1,max=3,dive"`
	CreatedAt              time.Time              `json:"created_at,omitempty"`
	UpdatedAt              time.Time              `json:"updated_at,omitempty"`
}

func (p ChargingProfile) Key() ChargingProfileKey {
	return ChargingProfileKey{EvseDatabaseID: p.EvseDatabaseID, ID: p.ID}
}

type ChargingSchedule struct {
	DatabaseID             string                   `json:"database_id,omitempty"`
	ID                     int                      `json:"id"`
	StartSchedule          *time.Time               `json:"start_schedule,omitempty"`
	Duration               *int                     `json:"duration,omitempty" validate:"omitempty,gte=0"`
	ChargingRateUnit       ChargingRateUnit         `json:"charging_rate_unit" validate:"required,oneof=W A"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"charging_schedule_period" validate:"required,min=1,dive"`
	MinChargingRate        *decimal.Decimal         `json:"min_charging_rate,omitempty"`
	SalesTariff            *SalesTariff             `json:"sales_tariff,omitempty"`
}

type ChargingSchedulePeriod struct {
	StartPeriod  int             `json:"start_period" validate:"gte=0"`
	Limit        decimal.Decimal `json:"limit"`
	NumberPhases *int            `json:"number_phases,omitempty" validate:"omitempty,min=1,max=3"`
	PhaseToUse   *int            `json:"phase_to_use,omitempty" validate:"omitempty,min=1,max=3"`
}

type SalesTariff struct {
	DatabaseID             string             `json:"database_id,omitempty"`
	ID                     int                `json:"id"`
	SalesTariffDescription *string            `json:"sales_tariff_description,omitempty" validate:"omitempty,max=32"`
	NumEPriceLevels        *int               `json:"num_e_price_levels,omitempty"`
	SalesTariffEntry       []SalesTariffEntry `json:"sales_tariff_entry" validate:"required,min=1,max=1024,dive"`
}

type SalesTariffEntry struct {
	EPriceLevel          *int                 `json:"e_price_level,omitempty"`
	RelativeTimeInterval RelativeTimeInterval `json:"relative_time_interval"`
	ConsumptionCost      []ConsumptionCost    `json:"consumption_cost,omitempty" validate:"omitempty,max=3,dive"`
}

type RelativeTimeInterval struct {
	Start    int  `json:"start"`
	Duration *int `json:"duration,omitempty"`
}

type ConsumptionCost struct {
	StartValue decimal.Decimal `json:"start_value"`
	Cost       []Cost          `json:"cost" validate:"required,min=1,max=3"`
}

type Cost struct {
	CostKind         string `json:"cost_kind"`
	Amount           int    `json:"amount"`
	AmountMultiplier *int   `json:"amount_multiplier,omitempty"`
}

// ChargingProfileQuery is the operator filter for listing and deleting
// charging profiles. Unset fields do not constrain the result.
type ChargingProfileQuery struct {
	EvseDatabaseID         string                 `json:"evse_database_id,omitempty"`
	ID                     *int                   `json:"id,omitempty"`
	ChargingProfilePurpose ChargingProfilePurpose `json:"charging_profile_purpose,omitempty"`
	StackLevel             *int                   `json:"stack_level,omitempty"`
	TransactionDatabaseID  string                 `json:"transaction_database_id,omitempty"`
}

func (q ChargingProfileQuery) IsEmpty() bool {
	return q.EvseDatabaseID == "" && q.ID == nil && q.ChargingProfilePurpose == "" &&
		q.StackLevel == nil && q.TransactionDatabaseID == ""
}
