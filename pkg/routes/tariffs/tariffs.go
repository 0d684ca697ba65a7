package tariffs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/tariff"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Register registers tariff routes. Handlers resolve their repository from
// the request's dependency container.
func Register(g *echo.Group) {
	g.GET("/tariffs", GetTariffs)
	g.PUT("/tariffs", UpsertTariff)
	g.DELETE("/tariffs", DeleteTariffs)
}

func UpsertTariff(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "tariffs.UpsertTariff")
	defer span.End()

	req, err := utils.BindRequest[models.Tariff](c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[tariff.TariffRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.UpsertTariff(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func GetTariffs(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "tariffs.GetTariffs")
	defer span.End()

	query, err := ParseQuery(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[tariff.TariffRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.ReadAllByQuery(ctx, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// DeleteTariffs removes the tariffs matching the query string. A request
// without any criterion is refused before the store is touched.
func DeleteTariffs(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "tariffs.DeleteTariffs")
	defer span.End()

	query, err := ParseQuery(c)
	if err != nil {
		return err
	}
	if query.IsEmpty() {
		return httperror.NewHTTPError(http.StatusBadRequest, "Must specify at least one query parameter")
	}

	ctx, repo, err := ectoinject.GetContext[tariff.TariffRepository](ctx)
	if err != nil {
		return err
	}

	deleted, err := repo.DeleteAllByQuery(ctx, query)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"query":   c.QueryString(),
			"deleted": len(deleted),
		}).Info("Deleted tariffs by query")
	}

	return c.String(http.StatusOK, fmt.Sprintf("%d rows successfully deleted from Tariff", len(deleted)))
}

// ParseQuery reads a TariffQuery from the query string. dateFrom and dateTo
// are RFC 3339 timestamps.
func ParseQuery(c echo.Context) (models.TariffQuery, error) {
	query := models.TariffQuery{
		StationID:   c.QueryParam("stationId"),
		ID:          c.QueryParam("id"),
		CountryCode: c.QueryParam("countryCode"),
		PartyID:     c.QueryParam("partyId"),
		Currency:    c.QueryParam("currency"),
	}

	var err error
	if query.DateFrom, err = parseTime(c, "dateFrom"); err != nil {
		return query, err
	}
	if query.DateTo, err = parseTime(c, "dateTo"); err != nil {
		return query, err
	}
	return query, nil
}

func parseTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be an RFC 3339 timestamp", name))
	}
	return &t, nil
}
