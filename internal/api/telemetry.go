package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tgienger/taskboard/internal/api"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// requestInstruments resolves against whatever meter provider is installed now
func requestInstruments() (metric.Int64Counter, metric.Float64Histogram, error) {
	meter := otel.Meter(instrumentationName)

	total, err := meter.Int64Counter(
		"taskboard_api_requests_total",
		metric.WithDescription("Total number of backend requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	duration, err := meter.Float64Histogram(
		"taskboard_api_request_duration_seconds",
		metric.WithDescription("Duration of backend requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, nil, err
	}
	return total, duration, nil
}

func startRequestSpan(ctx context.Context, method, path, requestID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "api."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("taskboard.api.path", path),
			attribute.String("taskboard.request_id", requestID),
		),
	)
}

func endRequestSpan(span trace.Span, status int, err error) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Message(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func recordRequestMetrics(ctx context.Context, method string, status int, duration time.Duration) {
	total, hist, err := requestInstruments()
	if err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	total.Add(ctx, 1, attrs)
	hist.Record(ctx, duration.Seconds(), attrs)
}
