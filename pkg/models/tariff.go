package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TariffType string

const (
	TariffTypeAdHocPayment TariffType = "AD_HOC_PAYMENT"
	TariffTypeProfileCheap TariffType = "PROFILE_CHEAP"
	TariffTypeProfileFast  TariffType = "PROFILE_FAST"
	TariffTypeProfileGreen TariffType = "PROFILE_GREEN"
	TariffTypeRegular      TariffType = "REGULAR"
)

type PriceComponentType string

const (
	PriceComponentEnergy      PriceComponentType = "ENERGY"
	PriceComponentFlat        PriceComponentType = "FLAT"
	PriceComponentParkingTime PriceComponentType = "PARKING_TIME"
	PriceComponentTime        PriceComponentType = "TIME"
)

// TariffKey is the natural key devices use to identify a tariff.
type TariffKey struct {
	ID          string `json:"id"`
	CountryCode string `json:"country_code"`
	PartyID     string `json:"party_id"`
}

func (k TariffKey) String() string {
	return k.CountryCode + "/" + k.PartyID + "/" + k.ID
}

// Tariff is a pricing scheme with its owned elements and price components.
type Tariff struct {
	DatabaseID          string           `json:"database_id,omitempty"`
	ID                  string           `json:"id" validate:"required,max=36"`
	CountryCode         string           `json:"country_code" validate:"required,len=2"`
	PartyID             string           `json:"party_id" validate:"required,max=3"`
	StationID           *string          `json:"station_id,omitempty" validate:"omitempty,max=36"`
	Currency            string           `json:"currency" validate:"required,len=3"`
	Type                *TariffType      `json:"type,omitempty" validate:"omitempty,oneof=AD_HOC_PAYMENT PROFILE_CHEAP PROFILE_FAST PROFILE_GREEN REGULAR"`
	TariffAltText       []DisplayText    `json:"tariff_alt_text,omitempty" validate:"omitempty,dive"`
	TariffAltURL        *string          `json:"tariff_alt_url,omitempty" validate:"omitempty,url"`
	MinPrice            *Price           `json:"min_price,omitempty"`
	MaxPrice            *Price           `json:"max_price,omitempty"`
	Elements            []TariffElement  `json:"elements" validate:"required,min=1,dive"`
	EnergyMix           *EnergyMix       `json:"energy_mix,omitempty"`
	StartDateTime       *time.Time       `json:"start_date_time,omitempty"`
	EndDateTime         *time.Time       `json:"end_date_time,omitempty"`
	LastUpdated         time.Time        `json:"last_updated" validate:"required"`
	AuthorizationAmount *decimal.Decimal `json:"authorization_amount,omitempty"`
	CreatedAt           time.Time        `json:"created_at,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at,omitempty"`
}

func (t Tariff) Key() TariffKey {
	return TariffKey{ID: t.ID, CountryCode: t.CountryCode, PartyID: t.PartyID}
}

type Price struct {
	ExclVat decimal.Decimal  `json:"excl_vat"`
	InclVat *decimal.Decimal `json:"incl_vat,omitempty"`
}

type DisplayText struct {
	Language string `json:"language" validate:"required,len=2"`
	Text     string `json:"text" validate:"required,max=512"`
}

type TariffElement struct {
	DatabaseID      string              `json:"database_id,omitempty"`
	PriceComponents []PriceComponent    `json:"price_components" validate:"required,min=1,dive"`
	Restrictions    *TariffRestrictions `json:"restrictions,omitempty"`
}

type PriceComponent struct {
	DatabaseID string             `json:"database_id,omitempty"`
	Type       PriceComponentType `json:"type" validate:"required,oneof=ENERGY FLAT PARKING_TIME TIME"`
	Price      decimal.Decimal    `json:"price"`
	Vat        *decimal.Decimal   `json:"vat,omitempty"`
	StepSize   int                `json:"step_size" validate:"gte=0"`
}

type TariffRestrictions struct {
	StartTime   *string          `json:"start_time,omitempty"`
	EndTime     *string          `json:"end_time,omitempty"`
	StartDate   *string          `json:"start_date,omitempty"`
	EndDate     *string          `json:"end_date,omitempty"`
	MinKwh      *decimal.Decimal `json:"min_kwh,omitempty"`
	MaxKwh      *decimal.Decimal `json:"max_kwh,omitempty"`
	MinCurrent  *decimal.Decimal `json:"min_current,omitempty"`
	MaxCurrent  *decimal.Decimal `json:"max_current,omitempty"`
	MinPower    *decimal.Decimal `json:"min_power,omitempty"`
	MaxPower    *decimal.Decimal `json:"max_power,omitempty"`
	MinDuration *int             `json:"min_duration,omitempty"`
	MaxDuration *int             `json:"max_duration,omitempty"`
	DayOfWeek   []string         `json:"day_of_week,omitempty"`
	Reservation *string          `json:"reservation,omitempty"`
}

type EnergyMix struct {
	IsGreenEnergy     bool                  `json:"is_green_energy"`
	EnergySources     []EnergySource        `json:"energy_sources,omitempty"`
	EnvironImpact     []EnvironmentalImpact `json:"environ_impact,omitempty"`
	SupplierName      *string               `json:"supplier_name,omitempty"`
	EnergyProductName *string               `json:"energy_product_name,omitempty"`
}

type EnergySource struct {
	Source     string          `json:"source"`
	Percentage decimal.Decimal `json:"percentage"`
}

type EnvironmentalImpact struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// TariffQuery is the operator filter for listing and deleting tariffs.
// Unset fields do not constrain the result.
type TariffQuery struct {
	StationID   string     `json:"station_id,omitempty"`
	ID          string     `json:"id,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
	PartyID     string     `json:"party_id,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	DateFrom    *time.Time `json:"date_from,omitempty"`
	DateTo      *time.Time `json:"date_to,omitempty"`
}

func (q TariffQuery) IsEmpty() bool {
	return q.StationID == "" && q.ID == "" && q.CountryCode == "" && q.PartyID == "" &&
		q.Currency == "" && q.DateFrom == nil && q.DateTo == nil
}
