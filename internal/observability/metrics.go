package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

// Metrics holds the instruments recorded for every repository query.
type Metrics struct {
	queries     metric.Int64Counter
	errors      metric.Int64Counter
	identifiers metric.Int64Histogram
	duration    metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	queries, err := meter.Int64Counter("condbuilder.queries",
		metric.WithDescription("Number of executed queries"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("condbuilder.query.errors",
		metric.WithDescription("Number of failed queries"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	identifiers, err := meter.Int64Histogram("condbuilder.identifiers",
		metric.WithDescription("Number of identifiers expanded into a query"),
		metric.WithUnit("{identifier}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("condbuilder.query.duration",
		metric.WithDescription("Query execution time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{queries: queries, errors: errs, identifiers: identifiers, duration: duration}, nil
}

// RecordQuery records one executed query.
func (m *Metrics) RecordQuery(ctx context.Context, operation, table string, identifiers int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		AttrOperation.String(operation),
		AttrDBTable.String(table),
	)
	m.queries.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if identifiers > 0 {
		m.identifiers.Record(ctx, int64(identifiers), attrs)
	}
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			AttrOperation.String(operation),
			AttrDBTable.String(table),
			attribute.String("error.type", errorType(err)),
		))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, condition.ErrMalformedIdentifier), errors.Is(err, condition.ErrInvalidExpression):
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "database"
}
