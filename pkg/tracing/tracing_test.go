package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTraceIdentifiers(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetTraceParent(context.Background()))

	SetTracer(sdktrace.NewTracerProvider().Tracer("test"))
	ctx, span := StartSpan(context.Background(), "TariffRepository.UpsertTariff")
	defer span.End()

	traceID := GetTraceID(ctx)
	require.Len(t, traceID, 32)
	assert.True(t, strings.HasPrefix(GetTraceParent(ctx), "00-"+traceID+"-"))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	SetTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test"))

	_, span := StartSpan(context.Background(), "failing")
	RecordError(span, nil)
	RecordError(span, errors.New("constraint violation"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "constraint violation", spans[0].Status().Description)
}
