package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Checker reports whether a backing service is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Register mounts GET /health. The database is always checked; extra
// checkers are reported by name.
func Register(e *echo.Echo, db database.DB, checkers map[string]Checker) {
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		resp := Response{Status: "ok", Checks: map[string]string{}}
		if err := db.PingContext(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Checks["database"] = err.Error()
		} else {
			resp.Checks["database"] = "ok"
		}
		for name, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				resp.Status = "unavailable"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	})
}
