package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("credential-session-core/service")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}
