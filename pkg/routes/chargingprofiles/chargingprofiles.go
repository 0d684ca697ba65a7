package chargingprofiles

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/chargingprofile"
	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

func Register(g *echo.Group) {
	g.GET("/charging-profiles", GetChargingProfiles)
	g.PUT("/charging-profiles/:evseDatabaseId", UpsertChargingProfile)
	g.DELETE("/charging-profiles", DeleteChargingProfiles)
	g.GET("/charging-needs", GetChargingNeeds)
	g.POST("/charging-needs/:stationId", CreateChargingNeeds)
}

// UpsertChargingProfile stores the profile in the body for the EVSE in the
// path. The transaction it belongs to, if any, is passed as the
// transactionDatabaseId query parameter.
func UpsertChargingProfile(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "chargingprofiles.UpsertChargingProfile")
	defer span.End()

	req, err := utils.BindRequest[models.ChargingProfile](c)
	if err != nil {
		return err
	}

	var transactionDatabaseID *string
	if id := c.QueryParam("transactionDatabaseId"); id != "" {
		transactionDatabaseID = &id
	}

	ctx, repo, err := ectoinject.GetContext[chargingprofile.ChargingProfileRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.CreateOrUpdateChargingProfile(ctx, req, c.Param("evseDatabaseId"), transactionDatabaseID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func GetChargingProfiles(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "chargingprofiles.GetChargingProfiles")
	defer span.End()

	query, err := ParseQuery(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[chargingprofile.ChargingProfileRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.ReadAllByQuery(ctx, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func DeleteChargingProfiles(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "chargingprofiles.DeleteChargingProfiles")
	defer span.End()

	query, err := ParseQuery(c)
	if err != nil {
		return err
	}
	if query.IsEmpty() {
		return httperror.NewHTTPError(http.StatusBadRequest, "Must specify at least one query parameter")
	}

	ctx, repo, err := ectoinject.GetContext[chargingprofile.ChargingProfileRepository](ctx)
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
		}).Info("Deleted charging profiles by query")
	}

	return c.String(http.StatusOK, fmt.Sprintf("%d rows successfully deleted from ChargingProfile", len(deleted)))
}

func CreateChargingNeeds(c echo.Context) error {
	stationID := c.Param("stationId")
	if err := utils.ValidateValue(stationID, "required,max=36"); err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}
	ctx := context.SetStationID(c.Request().Context(), stationID)
	ctx, span := tracing.StartSpan(ctx, "chargingprofiles.CreateChargingNeeds")
	defer span.End()

	req, err := utils.BindRequest[models.NotifyEVChargingNeedsRequest](c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[chargingprofile.ChargingProfileRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.CreateChargingNeeds(ctx, req, stationID)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"evse_database_id":        result.EvseDatabaseID,
			"transaction_database_id": result.TransactionDatabaseID,
		}).Info("Recorded charging needs")
	}

	return c.JSON(http.StatusCreated, result)
}

func GetChargingNeeds(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "chargingprofiles.GetChargingNeeds")
	defer span.End()

	evseDatabaseID := c.QueryParam("evseDatabaseId")
	transactionDatabaseID := c.QueryParam("transactionDatabaseId")
	if evseDatabaseID == "" || transactionDatabaseID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "evseDatabaseId and transactionDatabaseId are required")
	}

	ctx, repo, err := ectoinject.GetContext[chargingprofile.ChargingProfileRepository](ctx)
	if err != nil {
		return err
	}

	result, err := repo.FindChargingNeedsByEvseAndTransaction(ctx, evseDatabaseID, transactionDatabaseID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ParseQuery reads a ChargingProfileQuery from the query string.
func ParseQuery(c echo.Context) (models.ChargingProfileQuery, error) {
	query := models.ChargingProfileQuery{
		EvseDatabaseID:         c.QueryParam("evseDatabaseId"),
		ChargingProfilePurpose: models.ChargingProfilePurpose(c.QueryParam("chargingProfilePurpose")),
		TransactionDatabaseID:  c.QueryParam("transactionDatabaseId"),
	}

	var err error
	if query.ID, err = parseInt(c, "id"); err != nil {
		return query, err
	}
	if query.StackLevel, err = parseInt(c, "stackLevel"); err != nil {
		return query, err
	}
	return query, nil
}

func parseInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
	}
	return &v, nil
}
