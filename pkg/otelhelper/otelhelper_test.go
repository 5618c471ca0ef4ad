package otelhelper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/operion-marketplace/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetError_RecordsStatusAndEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := otelhelper.StartSpan(context.Background(), provider.Tracer("test"), "marketplace.import",
		attribute.String(otelhelper.EntryIDKey, "entry-1"),
	)
	otelhelper.SetError(span, errors.New("boom"), attribute.String(otelhelper.UserIDKey, "user-1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)

	var names []string
	for _, event := range spans[0].Events() {
		names = append(names, event.Name)
	}

	assert.Contains(t, names, "error_occurred")
}

type codeError struct{ code string }

func (e codeError) Error() string     { return "coded failure" }
func (e codeError) ErrorCode() string { return e.code }

func TestSetError_RecordsErrorCode(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := otelhelper.StartSpan(context.Background(), provider.Tracer("test"), "marketplace.delete")
	otelhelper.SetError(span, fmt.Errorf("delete: %w", codeError{code: "NOT_FOUND"}))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.ErrorCodeKey, "NOT_FOUND"))

	require.NotEmpty(t, spans[0].Events())
	assert.Contains(t, spans[0].Events()[len(spans[0].Events())-1].Attributes, attribute.String(otelhelper.ErrorCodeKey, "NOT_FOUND"))
}

func TestSetError_PlainErrorHasNoCode(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := otelhelper.StartSpan(context.Background(), provider.Tracer("test"), "marketplace.publish")
	otelhelper.SetError(span, errors.New("boom"))
	span.End()

	for _, attr := range recorder.Ended()[0].Attributes() {
		assert.NotEqual(t, attribute.Key(otelhelper.ErrorCodeKey), attr.Key)
	}
}

func TestNewNoopTracer(t *testing.T) {
	_, span := otelhelper.StartSpan(context.Background(), otelhelper.NewNoopTracer(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}
