package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/chargingprofile"
	"github.com/Ramsey-B/clover/internal/repositories/evse"
	"github.com/Ramsey-B/clover/internal/repositories/tariff"
	"github.com/Ramsey-B/clover/internal/repositories/transaction"
	"github.com/Ramsey-B/clover/pkg/database/dbtest"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes"
	"github.com/Ramsey-B/clover/pkg/routes/health"
)

const tariffBody = `{
	"id": "T1",
	"country_code": "US",
	"party_id": "P1",
	"station_id": "CS-01",
	"currency": "USD",
	"last_updated": "2024-03-01T12:00:00Z",
	"elements": [
		{"price_components": [{"type": "ENERGY", "price": "0.25", "step_size": 1}]}
	]
}`

const profileBody = `{
	"id": 1,
	"stack_level": 0,
	"charging_profile_purpose": "TxDefaultProfile",
	"charging_profile_kind": "Absolute",
	"charging_schedule": [
		{"id": 1, "charging_rate_unit": "A", "charging_schedule_period": [{"start_period": 0, "limit": "16"}]}
	]
}`

const needsBody = `{
	"evse_id": 1,
	"charging_needs": {"requested_energy_transfer": "DC"}
}`

type server struct {
	e            *echo.Echo
	evses        *evse.Repository
	transactions *transaction.Repository
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := dbtest.NewSQLite(t)
	logger := dbtest.Logger()
	evses := evse.NewRepository(db, logger)
	transactions := transaction.NewRepository(db, logger)

	containerID := "routes-test-" + t.Name()
	_, err := routes.NewContainer(containerID, routes.Services{
		Logger:           logger,
		DB:               db,
		Tariffs:          tariff.NewRepository(db, logger, 5*time.Second),
		ChargingProfiles: chargingprofile.NewRepository(db, logger, evses, transactions, 5*time.Second),
	})
	require.NoError(t, err)

	e := routes.NewServer(routes.Dependencies{
		ContainerID: containerID,
		DB:          db,
		Logger:      logger,
	})
	return &server{e: e, evses: evses, transactions: transactions}
}

func (s *server) do(method string, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestTariffs(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPut, routes.APIPrefix+"/tariffs", tariffBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stored models.Tariff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.NotEmpty(t, stored.DatabaseID)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = s.do(http.MethodPut, routes.APIPrefix+"/tariffs", tariffBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var again models.Tariff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, stored.DatabaseID, again.DatabaseID)

	rec = s.do(http.MethodGet, routes.APIPrefix+"/tariffs?stationId=CS-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Tariff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = s.do(http.MethodGet, routes.APIPrefix+"/tariffs?dateFrom=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, routes.APIPrefix+"/tariffs?id=T1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 rows successfully deleted from Tariff", rec.Body.String())
}

func TestTariffs_InvalidBody(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPut, routes.APIPrefix+"/tariffs", `{"id": "T1", "country_code": "US"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, routes.APIPrefix+"/tariffs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTariffs_DeleteWithoutCriteria(t *testing.T) {
	s := newServer(t)

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, routes.APIPrefix+"/tariffs", tariffBody).Code)

	rec := s.do(http.MethodDelete, routes.APIPrefix+"/tariffs", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)

	rec = s.do(http.MethodGet, routes.APIPrefix+"/tariffs", "")
	var listed []models.Tariff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1, "nothing is deleted")
}

func TestChargingProfiles(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPut, routes.APIPrefix+"/charging-profiles/no-such-evse", profileBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown EVSE is a failed precondition")

	station, _, err := s.evses.ReadOrCreate(context.Background(), 1, nil)
	require.NoError(t, err)

	rec = s.do(http.MethodPut, routes.APIPrefix+"/charging-profiles/"+station.DatabaseID, profileBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, routes.APIPrefix+"/charging-profiles?evseDatabaseId="+station.DatabaseID+"&stackLevel=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.ChargingProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Len(t, listed[0].ChargingSchedule, 1)

	rec = s.do(http.MethodGet, routes.APIPrefix+"/charging-profiles?stackLevel=high", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, routes.APIPrefix+"/charging-profiles", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, routes.APIPrefix+"/charging-profiles?id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 rows successfully deleted from ChargingProfile", rec.Body.String())
}

func TestChargingNeeds(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	rec := s.do(http.MethodPost, routes.APIPrefix+"/charging-needs/CS-01", needsBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no active transaction")

	rec = s.do(http.MethodPost, routes.APIPrefix+"/charging-needs/station-id-longer-than-thirty-six-chars", needsBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "station id too long")

	station, _, err := s.evses.ReadOrCreate(ctx, 1, nil)
	require.NoError(t, err)
	tx, err := s.transactions.Create(ctx, &models.Transaction{
		StationID:      "CS-01",
		TransactionID:  "tx-1",
		EvseDatabaseID: &station.DatabaseID,
		IsActive:       true,
	})
	require.NoError(t, err)

	rec = s.do(http.MethodPost, routes.APIPrefix+"/charging-needs/CS-01", needsBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, routes.APIPrefix+"/charging-needs?evseDatabaseId="+station.DatabaseID+"&transactionDatabaseId="+tx.DatabaseID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var needs []models.ChargingNeeds
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &needs))
	require.Len(t, needs, 1)
	assert.Equal(t, models.EnergyTransferDC, needs[0].RequestedEnergyTransfer)

	rec = s.do(http.MethodGet, routes.APIPrefix+"/charging-needs?evseDatabaseId="+station.DatabaseID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingChecker struct{}

func (failingChecker) Ping(context.Context) error {
	return assert.AnError
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	db := dbtest.NewSQLite(t)
	logger := dbtest.Logger()
	e := routes.NewServer(routes.Dependencies{
		ContainerID:    "routes-test-" + t.Name(),
		DB:             db,
		HealthCheckers: map[string]health.Checker{"redis": failingChecker{}},
		Logger:         logger,
	})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewContainer_ReplacesServices(t *testing.T) {
	first := newServer(t)
	require.Equal(t, http.StatusOK, first.do(http.MethodPut, routes.APIPrefix+"/tariffs", tariffBody).Code)

	// A second registration under the same id points the handlers at a new
	// store.
	second := newServer(t)
	rec := second.do(http.MethodGet, routes.APIPrefix+"/tariffs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Tariff
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestNewServer_UnknownContainer(t *testing.T) {
	db := dbtest.NewSQLite(t)
	e := routes.NewServer(routes.Dependencies{
		ContainerID: "routes-test-missing",
		DB:          db,
		Logger:      dbtest.Logger(),
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routes.APIPrefix+"/tariffs", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
