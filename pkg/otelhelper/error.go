package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorCodeKey holds the API error code of a failed operation.
const ErrorCodeKey = "marketplace.error.code"

type codedError interface {
	ErrorCode() string
}

// SetError marks span as failed. When err carries an error code anywhere in its
// chain, the code is set on the span and on the error event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	var coded codedError
	if errors.As(err, &coded) && coded.ErrorCode() != "" {
		code := attribute.String(ErrorCodeKey, coded.ErrorCode())
		span.SetAttributes(code)
		attrs = append(attrs, code)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
