package tariff

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/database/dbtest"
	apperrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/repository"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(dbtest.NewSQLite(t), dbtest.Logger(), 5*time.Second)
}

func component(componentType models.PriceComponentType, price string) models.PriceComponent {
	return models.PriceComponent{
		Type:     componentType,
		Price:    decimal.RequireFromString(price),
		StepSize: 1,
	}
}

func sampleTariff(prices ...string) models.Tariff {
	if len(prices) == 0 {
		prices = []string{"0.25"}
	}
	components := make([]models.PriceComponent, 0, len(prices))
	for _, price := range prices {
		components = append(components, component(models.PriceComponentEnergy, price))
	}
	stationID := "CS-01"
	return models.Tariff{
		ID:          "T1",
		CountryCode: "US",
		PartyID:     "P1",
		StationID:   &stationID,
		Currency:    "USD",
		LastUpdated: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Elements: []models.TariffElement{
			{PriceComponents: components},
		},
	}
}

func prices(t models.Tariff) []string {
	out := []string{}
	for _, element := range t.Elements {
		for _, c := range element.PriceComponents {
			out = append(out, c.Price.String())
		}
	}
	return out
}

func countRows(t *testing.T, r *Repository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestUpsertTariff_CreatesTariffWithChildren(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	stored, err := r.UpsertTariff(ctx, sampleTariff("0.25"))
	require.NoError(t, err)

	assert.NotEmpty(t, stored.DatabaseID)
	assert.Equal(t, models.TariffKey{ID: "T1", CountryCode: "US", PartyID: "P1"}, stored.Key())
	require.Len(t, stored.Elements, 1)
	require.Len(t, stored.Elements[0].PriceComponents, 1)
	assert.NotEmpty(t, stored.Elements[0].DatabaseID)
	assert.True(t, decimal.RequireFromString("0.25").Equal(stored.Elements[0].PriceComponents[0].Price))
	assert.True(t, stored.LastUpdated.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	found, err := r.FindByKey(ctx, stored.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, stored.DatabaseID, found.DatabaseID)
	assert.Equal(t, prices(*stored), prices(*found))
}

func TestUpsertTariff_IsIdempotent(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	first, err := r.UpsertTariff(ctx, sampleTariff("0.25", "1.00"))
	require.NoError(t, err)
	second, err := r.UpsertTariff(ctx, sampleTariff("0.25", "1.00"))
	require.NoError(t, err)

	assert.Equal(t, first.DatabaseID, second.DatabaseID)
	assert.Equal(t, prices(*first), prices(*second))
	assert.Equal(t, 1, countRows(t, r, tariffsTable))
	assert.Equal(t, 1, countRows(t, r, tariffElementsTable))
	assert.Equal(t, 2, countRows(t, r, priceComponentsTable))
}

func TestUpsertTariff_KeepsDecimalPrecision(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	tariff := sampleTariff("0.123456789012345678")
	amount := decimal.RequireFromString("12345678901234.000000001")
	tariff.AuthorizationAmount = &amount

	stored, err := r.UpsertTariff(ctx, tariff)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.123456789012345678"}, prices(*stored))

	found, err := r.FindByKey(ctx, stored.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []string{"0.123456789012345678"}, prices(*found))
	require.NotNil(t, found.AuthorizationAmount)
	assert.Equal(t, "12345678901234.000000001", found.AuthorizationAmount.String())

	var storedType string
	require.NoError(t, r.db.GetContext(ctx, &storedType, "SELECT typeof(price) FROM "+priceComponentsTable))
	assert.Equal(t, "text", storedType)
}

func TestUpsertTariff_ReplacesChildren(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	first, err := r.UpsertTariff(ctx, sampleTariff("0.25", "1.00"))
	require.NoError(t, err)

	candidate := sampleTariff("0.30")
	candidate.Currency = "EUR"
	candidate.Elements = append(candidate.Elements, models.TariffElement{
		PriceComponents: []models.PriceComponent{component(models.PriceComponentFlat, "2.50")},
	})

	second, err := r.UpsertTariff(ctx, candidate)
	require.NoError(t, err)

	assert.Equal(t, first.DatabaseID, second.DatabaseID)
	assert.Equal(t, "EUR", second.Currency)
	assert.Equal(t, []string{"0.3", "2.5"}, prices(*second))
	assert.Equal(t, models.PriceComponentFlat, second.Elements[1].PriceComponents[0].Type)
	assert.Equal(t, 2, countRows(t, r, tariffElementsTable))
	assert.Equal(t, 2, countRows(t, r, priceComponentsTable))
}

func TestUpsertTariff_FailedUpdateLeavesPriorVersion(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	first, err := r.UpsertTariff(ctx, sampleTariff("0.25"))
	require.NoError(t, err)

	bogus := sampleTariff("0.99")
	bogus.Currency = "EUR"
	bogus.Elements[0].PriceComponents[0].Type = "BOGUS"

	_, err = r.UpsertTariff(ctx, bogus)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)

	found, err := r.FindByKey(ctx, first.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.DatabaseID, found.DatabaseID)
	assert.Equal(t, "USD", found.Currency)
	assert.Equal(t, []string{"0.25"}, prices(*found))
	assert.Equal(t, 1, countRows(t, r, priceComponentsTable))
}

func TestUpsertTariff_ConcurrentWritersLeaveOneCandidate(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	candidates := [][]string{
		{"0.10", "0.11"},
		{"0.20"},
		{"0.30", "0.31", "0.32"},
		{"0.40"},
		{"0.50", "0.51"},
	}

	var wg sync.WaitGroup
	ids := make([]string, len(candidates))
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate []string) {
			defer wg.Done()
			stored, err := r.UpsertTariff(ctx, sampleTariff(candidate...))
			if assert.NoError(t, err) {
				ids[i] = stored.DatabaseID
			}
		}(i, candidate)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id, "every writer sees the same tariff")
	}

	found, err := r.FindByKey(ctx, sampleTariff().Key())
	require.NoError(t, err)
	require.NotNil(t, found)

	got := prices(*found)
	matched := false
	for _, candidate := range candidates {
		want := make([]string, len(candidate))
		for i, price := range candidate {
			want[i] = decimal.RequireFromString(price).String()
		}
		if assert.ObjectsAreEqual(want, got) {
			matched = true
		}
	}
	assert.True(t, matched, "children %v are not exactly one candidate's set", got)
	assert.Equal(t, len(got), countRows(t, r, priceComponentsTable))
}

func TestUpsertTariff_EmitsAfterCommit(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	var events []repository.Event[models.Tariff]
	record := func(_ context.Context, event repository.Event[models.Tariff]) {
		events = append(events, event)
	}
	r.OnCreated(record)
	r.OnUpdated(record)
	r.OnDeleted(record)

	_, err := r.UpsertTariff(ctx, sampleTariff("0.25"))
	require.NoError(t, err)
	_, err = r.UpsertTariff(ctx, sampleTariff("0.30"))
	require.NoError(t, err)

	bogus := sampleTariff("0.99")
	bogus.Elements[0].PriceComponents[0].Type = "BOGUS"
	_, err = r.UpsertTariff(ctx, bogus)
	require.Error(t, err)

	_, err = r.DeleteAllByQuery(ctx, models.TariffQuery{ID: "T1"})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, repository.EventCreated, events[0].Type)
	assert.Equal(t, repository.EventUpdated, events[1].Type)
	assert.Equal(t, []string{"0.3"}, prices(events[1].Entities[0]))
	assert.Equal(t, repository.EventDeleted, events[2].Type)
}

func TestUpsertTariff_JoinsCallerTransaction(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	boom := fmt.Errorf("caller gave up")
	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context) error {
		if _, err := r.UpsertTariff(ctx, sampleTariff("0.25")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := r.FindByKey(ctx, sampleTariff().Key())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestReadAllByQuery(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	older := sampleTariff("0.25")
	newer := sampleTariff("0.30")
	newer.ID = "T2"
	newer.LastUpdated = older.LastUpdated.Add(time.Hour)
	other := sampleTariff("0.40")
	other.ID = "T3"
	otherStation := "CS-02"
	other.StationID = &otherStation
	other.Currency = "EUR"

	for _, tariff := range []models.Tariff{older, newer, other} {
		_, err := r.UpsertTariff(ctx, tariff)
		require.NoError(t, err)
	}

	byStation, err := r.FindByStationID(ctx, "CS-01")
	require.NoError(t, err)
	require.Len(t, byStation, 2)
	assert.Equal(t, "T2", byStation[0].ID, "most recently updated first")
	assert.Equal(t, "T1", byStation[1].ID)

	byCurrency, err := r.ReadAllByQuery(ctx, models.TariffQuery{Currency: "EUR"})
	require.NoError(t, err)
	require.Len(t, byCurrency, 1)
	assert.Equal(t, []string{"0.4"}, prices(byCurrency[0]))

	from := older.LastUpdated.Add(30 * time.Minute)
	byDate, err := r.ReadAllByQuery(ctx, models.TariffQuery{StationID: "CS-01", DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "T2", byDate[0].ID)

	none, err := r.ReadAllByQuery(ctx, models.TariffQuery{StationID: "nowhere"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := r.ReadAllByQuery(ctx, models.TariffQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteAllByQuery_Cascades(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	kept := sampleTariff("0.40")
	kept.ID = "T2"
	_, err := r.UpsertTariff(ctx, sampleTariff("0.25", "1.00"))
	require.NoError(t, err)
	_, err = r.UpsertTariff(ctx, kept)
	require.NoError(t, err)

	deleted, err := r.DeleteAllByQuery(ctx, models.TariffQuery{ID: "T1"})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, []string{"0.25", "1"}, prices(deleted[0]))

	assert.Equal(t, 1, countRows(t, r, tariffsTable))
	assert.Equal(t, 1, countRows(t, r, tariffElementsTable))
	assert.Equal(t, 1, countRows(t, r, priceComponentsTable))

	again, err := r.DeleteAllByQuery(ctx, models.TariffQuery{ID: "T1"})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDeleteAllByQuery_RequiresCriterion(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	_, err := r.UpsertTariff(ctx, sampleTariff("0.25"))
	require.NoError(t, err)

	_, err = r.DeleteAllByQuery(ctx, models.TariffQuery{})
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)
	assert.Equal(t, 1, countRows(t, r, tariffsTable))
}

func TestUpsertTariff_Postgres(t *testing.T) {
	db := dbtest.NewPostgres(t)
	r := NewRepository(db, dbtest.Logger(), 10*time.Second)
	ctx := context.Background()

	first, err := r.UpsertTariff(ctx, sampleTariff("0.25", "1.00"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.UpsertTariff(ctx, sampleTariff(fmt.Sprintf("0.%d0", i+1)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	found, err := r.FindByKey(ctx, first.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.DatabaseID, found.DatabaseID)
	assert.Len(t, prices(*found), 1)
	assert.Equal(t, 1, countRows(t, r, priceComponentsTable))

	deleted, err := r.DeleteAllByQuery(ctx, models.TariffQuery{CountryCode: "US"})
	require.NoError(t, err)
	assert.Len(t, deleted, 1)
}
