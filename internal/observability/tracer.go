package observability

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrDBSystem     = attribute.Key("db.system")
	AttrDBTable      = attribute.Key("db.sql.table")
	AttrDBStatement  = attribute.Key("db.statement")
	AttrServiceName  = attribute.Key("service.name")
	AttrOperation    = attribute.Key("condbuilder.operation")
	AttrFingerprint  = attribute.Key("condbuilder.fingerprint")
	AttrIdentifiers  = attribute.Key("condbuilder.identifiers")
	AttrQueryID      = attribute.Key("condbuilder.query_id")
	AttrRowsReturned = attribute.Key("condbuilder.rows")
)

// Tracer starts spans for repository operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

func newTracer(t trace.Tracer, serviceName string) *Tracer {
	return &Tracer{tracer: t, serviceName: serviceName}
}

// QueryInfo describes the query a span covers.
type QueryInfo struct {
	Operation   string
	Dialect     string
	Table       string
	QueryID     string
	Fingerprint uint64
	Identifiers int
}

// StartQuery starts a span named "condbuilder.<operation> <table>".
func (t *Tracer) StartQuery(ctx context.Context, info QueryInfo) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "condbuilder."+info.Operation+" "+info.Table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrServiceName.String(t.serviceName),
			AttrOperation.String(info.Operation),
			AttrDBSystem.String(info.Dialect),
			AttrDBTable.String(info.Table),
			AttrQueryID.String(info.QueryID),
			AttrFingerprint.String(strconv.FormatUint(info.Fingerprint, 16)),
			AttrIdentifiers.Int(info.Identifiers),
		),
	)
}

// StartStatement starts a span for a single SQL statement.
func (t *Tracer) StartStatement(ctx context.Context, dialect, table string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "db.statement "+table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrDBSystem.String(dialect),
			AttrDBTable.String(table),
		),
	)
}

// RecordError marks span as failed when err is non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
