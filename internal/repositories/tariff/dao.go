package tariff

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
)

const (
	tariffsTable         = "tariffs"
	tariffElementsTable  = "tariff_elements"
	priceComponentsTable = "price_components"
)

// TariffRow represents the database row for a tariff
type TariffRow struct {
	DatabaseID          string                               `db:"database_id"`
	ID                  string                               `db:"id"`
	CountryCode         string                               `db:"country_code"`
	PartyID             string                               `db:"party_id"`
	StationID           sql.NullString                       `db:"station_id"`
	Currency            string                               `db:"currency"`
	Type                sql.NullString                       `db:"type"`
	TariffAltText       database.JSONB[[]models.DisplayText] `db:"tariff_alt_text"`
	TariffAltURL        sql.NullString                       `db:"tariff_alt_url"`
	MinPriceExclVat     decimal.NullDecimal                  `db:"min_price_excl_vat"`
	MinPriceInclVat     decimal.NullDecimal                  `db:"min_price_incl_vat"`
	MaxPriceExclVat     decimal.NullDecimal                  `db:"max_price_excl_vat"`
	MaxPriceInclVat     decimal.NullDecimal                  `db:"max_price_incl_vat"`
	EnergyMix           database.JSONB[*models.EnergyMix]    `db:"energy_mix"`
	StartDateTime       sql.NullTime                         `db:"start_date_time"`
	EndDateTime         sql.NullTime                         `db:"end_date_time"`
	LastUpdated         time.Time                            `db:"last_updated"`
	AuthorizationAmount decimal.NullDecimal                  `db:"authorization_amount"`
	CreatedAt           time.Time                            `db:"created_at"`
	UpdatedAt           time.Time                            `db:"updated_at"`
}

// TariffElementRow represents the database row for a tariff element
type TariffElementRow struct {
	DatabaseID       string                                     `db:"database_id"`
	TariffDatabaseID string                                     `db:"tariff_database_id"`
	SortOrder        int                                        `db:"sort_order"`
	Restrictions     database.JSONB[*models.TariffRestrictions] `db:"restrictions"`
}

// PriceComponentRow represents the database row for a price component
type PriceComponentRow struct {
	DatabaseID              string              `db:"database_id"`
	TariffElementDatabaseID string              `db:"tariff_element_database_id"`
	SortOrder               int                 `db:"sort_order"`
	Type                    string              `db:"type"`
	Price                   decimal.Decimal     `db:"price"`
	Vat                     decimal.NullDecimal `db:"vat"`
	StepSize                int                 `db:"step_size"`
}

func tariffSchema() repository.Schema[TariffRow, string] {
	return repository.Schema[TariffRow, string]{
		Entity:    "Tariff",
		Table:     tariffsTable,
		KeyColumn: "database_id",
		Key:       func(row *TariffRow) *string { return &row.DatabaseID },
		NewKey:    repository.UUIDKey,
	}
}

func tariffElementSchema() repository.Schema[TariffElementRow, string] {
	return repository.Schema[TariffElementRow, string]{
		Entity:    "TariffElement",
		Table:     tariffElementsTable,
		KeyColumn: "database_id",
		Key:       func(row *TariffElementRow) *string { return &row.DatabaseID },
		NewKey:    repository.UUIDKey,
	}
}

func priceComponentSchema() repository.Schema[PriceComponentRow, string] {
	return repository.Schema[PriceComponentRow, string]{
		Entity:    "PriceComponent",
		Table:     priceComponentsTable,
		KeyColumn: "database_id",
		Key:       func(row *PriceComponentRow) *string { return &row.DatabaseID },
		NewKey:    repository.UUIDKey,
	}
}

// FromTariff converts the top level of a tariff to a database row. Elements
// are mapped separately because they need the parent's surrogate key.
func FromTariff(t *models.Tariff) *TariffRow {
	row := &TariffRow{
		DatabaseID:          t.DatabaseID,
		ID:                  t.ID,
		CountryCode:         t.CountryCode,
		PartyID:             t.PartyID,
		StationID:           database.NullString(t.StationID),
		Currency:            t.Currency,
		TariffAltText:       database.NewJSONB(t.TariffAltText),
		TariffAltURL:        database.NullString(t.TariffAltURL),
		EnergyMix:           database.NewJSONB(t.EnergyMix),
		StartDateTime:       database.NullTime(t.StartDateTime),
		EndDateTime:         database.NullTime(t.EndDateTime),
		LastUpdated:         t.LastUpdated.UTC(),
		AuthorizationAmount: database.NullDecimal(t.AuthorizationAmount),
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if t.Type != nil {
		row.Type = sql.NullString{String: string(*t.Type), Valid: true}
	}
	if t.MinPrice != nil {
		row.MinPriceExclVat = decimal.NullDecimal{Decimal: t.MinPrice.ExclVat, Valid: true}
		row.MinPriceInclVat = database.NullDecimal(t.MinPrice.InclVat)
	}
	if t.MaxPrice != nil {
		row.MaxPriceExclVat = decimal.NullDecimal{Decimal: t.MaxPrice.ExclVat, Valid: true}
		row.MaxPriceInclVat = database.NullDecimal(t.MaxPrice.InclVat)
	}
	return row
}

// scalarPatch lists every column an update overwrites. The natural key,
// surrogate key and created_at never change.
func scalarPatch(row *TariffRow) repository.Patch {
	return repository.Patch{
		"station_id":           row.StationID,
		"currency":             row.Currency,
		"type":                 row.Type,
		"tariff_alt_text":      row.TariffAltText,
		"tariff_alt_url":       row.TariffAltURL,
		"min_price_excl_vat":   row.MinPriceExclVat,
		"min_price_incl_vat":   row.MinPriceInclVat,
		"max_price_excl_vat":   row.MaxPriceExclVat,
		"max_price_incl_vat":   row.MaxPriceInclVat,
		"energy_mix":           row.EnergyMix,
		"start_date_time":      row.StartDateTime,
		"end_date_time":        row.EndDateTime,
		"last_updated":         row.LastUpdated,
		"authorization_amount": row.AuthorizationAmount,
		"updated_at":           row.UpdatedAt,
	}
}

// FromElements maps the elements of a tariff and their price components to
// rows. Surrogate keys are assigned here so components can reference their
// element before either is inserted.
func FromElements(tariffDatabaseID string, elements []models.TariffElement) ([]TariffElementRow, []PriceComponentRow) {
	elementRows := make([]TariffElementRow, 0, len(elements))
	componentRows := []PriceComponentRow{}
	for i, element := range elements {
		elementRow := TariffElementRow{
			DatabaseID:       repository.UUIDKey(),
			TariffDatabaseID: tariffDatabaseID,
			SortOrder:        i,
			Restrictions:     database.NewJSONB(element.Restrictions),
		}
		elementRows = append(elementRows, elementRow)

		for j, component := range element.PriceComponents {
			componentRows = append(componentRows, PriceComponentRow{
				DatabaseID:              repository.UUIDKey(),
				TariffElementDatabaseID: elementRow.DatabaseID,
				SortOrder:               j,
				Type:                    string(component.Type),
				Price:                   component.Price,
				Vat:                     database.NullDecimal(component.Vat),
				StepSize:                component.StepSize,
			})
		}
	}
	return elementRows, componentRows
}

// ToTariff assembles a tariff from its row and its children's rows.
// Elements and components must already be in sort order.
func ToTariff(row *TariffRow, elements []TariffElementRow, components map[string][]PriceComponentRow) *models.Tariff {
	t := &models.Tariff{
		DatabaseID:          row.DatabaseID,
		ID:                  row.ID,
		CountryCode:         row.CountryCode,
		PartyID:             row.PartyID,
		StationID:           database.StringPtr(row.StationID),
		Currency:            row.Currency,
		TariffAltText:       row.TariffAltText.Data,
		TariffAltURL:        database.StringPtr(row.TariffAltURL),
		EnergyMix:           row.EnergyMix.Data,
		StartDateTime:       database.TimePtr(row.StartDateTime),
		EndDateTime:         database.TimePtr(row.EndDateTime),
		LastUpdated:         row.LastUpdated,
		AuthorizationAmount: database.DecimalPtr(row.AuthorizationAmount),
		Elements:            make([]models.TariffElement, 0, len(elements)),
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.Type.Valid {
		tariffType := models.TariffType(row.Type.String)
		t.Type = &tariffType
	}
	if row.MinPriceExclVat.Valid {
		t.MinPrice = &models.Price{ExclVat: row.MinPriceExclVat.Decimal, InclVat: database.DecimalPtr(row.MinPriceInclVat)}
	}
	if row.MaxPriceExclVat.Valid {
		t.MaxPrice = &models.Price{ExclVat: row.MaxPriceExclVat.Decimal, InclVat: database.DecimalPtr(row.MaxPriceInclVat)}
	}

	for _, elementRow := range elements {
		element := models.TariffElement{
			DatabaseID:      elementRow.DatabaseID,
			Restrictions:    elementRow.Restrictions.Data,
			PriceComponents: []models.PriceComponent{},
		}
		for _, componentRow := range components[elementRow.DatabaseID] {
			element.PriceComponents = append(element.PriceComponents, models.PriceComponent{
				DatabaseID: componentRow.DatabaseID,
				Type:       models.PriceComponentType(componentRow.Type),
				Price:      componentRow.Price,
				Vat:        database.DecimalPtr(componentRow.Vat),
				StepSize:   componentRow.StepSize,
			})
		}
		t.Elements = append(t.Elements, element)
	}
	return t
}

// QueryFilter composes the operator query into a filter. Listing and
// deleting share it, so anything that can be listed can be deleted.
func QueryFilter(q models.TariffQuery) repository.Filter {
	return repository.Where(
		repository.OptionalString("station_id", q.StationID),
		repository.OptionalString("id", q.ID),
		repository.OptionalString("country_code", q.CountryCode),
		repository.OptionalString("party_id", q.PartyID),
		repository.OptionalString("currency", q.Currency),
		repository.Range("last_updated", utc(q.DateFrom), utc(q.DateTo)),
	)
}

func keyFilter(key models.TariffKey) repository.Filter {
	return repository.Where(
		repository.Eq("id", key.ID),
		repository.Eq("country_code", key.CountryCode),
		repository.Eq("party_id", key.PartyID),
	)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
