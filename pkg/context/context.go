package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	StationIDKey = ContextKey("X-Station-Id")
)

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// SetStationID records the charging station a request acts for, so every
// log line of the request carries it.
func SetStationID(ctx context.Context, stationID string) context.Context {
	return context.WithValue(ctx, StationIDKey, stationID)
}

func GetStationID(ctx context.Context) string {
	return getString(ctx, StationIDKey)
}
