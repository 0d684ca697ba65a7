package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// HeaderStationID identifies the charging station an operator request is
// made on behalf of.
const HeaderStationID = "X-Station-ID"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.SetRequestID(req.Context(), requestID)
			if stationID := req.Header.Get(HeaderStationID); stationID != "" {
				ctx = context.SetStationID(ctx, stationID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
