package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/chargingprofiles"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/tariffs"
)

const APIPrefix = "/api/v1"

type Dependencies struct {
	ServiceName    string
	ContainerID    string
	DB             database.DB
	HealthCheckers map[string]health.Checker
	Logger         ectologger.Logger
}

// NewServer builds the operator gateway with its middleware chain. API
// handlers resolve their services from the container registered under
// deps.ContainerID, see NewContainer.
func NewServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(deps.Logger)

	if deps.ServiceName != "" {
		e.Use(otelecho.Middleware(deps.ServiceName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Container(deps.ContainerID))
	e.Use(middleware.Logger(deps.Logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	health.Register(e, deps.DB, deps.HealthCheckers)

	api := e.Group(APIPrefix)
	tariffs.Register(api)
	chargingprofiles.Register(api)

	return e
}
