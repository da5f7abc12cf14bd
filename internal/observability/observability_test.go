package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

type startedSpan struct {
	name  string
	attrs []attribute.KeyValue
}

type recordingTracerProvider struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []startedSpan
}

func (p *recordingTracerProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{provider: p}
}

func (p *recordingTracerProvider) started() []startedSpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]startedSpan(nil), p.spans...)
}

type recordingTracer struct {
	noop.Tracer
	provider *recordingTracerProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	t.provider.mu.Lock()
	t.provider.spans = append(t.provider.spans, startedSpan{name: name, attrs: cfg.Attributes()})
	t.provider.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestConfig_DefaultsToNoop(t *testing.T) {
	var nilConfig *Config
	ctx, span := nilConfig.Tracer().StartQuery(context.Background(), QueryInfo{Operation: "find", Table: "s"})
	if ctx == nil || span == nil {
		t.Fatal("Expected a usable no-op span")
	}
	span.End()
	nilConfig.Metrics().RecordQuery(context.Background(), "find", "s", 4, time.Millisecond, nil)

	cfg := NewConfig()
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if cfg.ServiceName() != DefaultServiceName {
		t.Errorf("Expected default service name, got %q", cfg.ServiceName())
	}
	cfg.Metrics().RecordQuery(context.Background(), "count", "s", 0, time.Millisecond, errors.New("boom"))
}

func TestTracer_StartQueryAttributes(t *testing.T) {
	provider := &recordingTracerProvider{}
	cfg := NewConfig(WithTracerProvider(provider), WithServiceName("orders"))
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, span := cfg.Tracer().StartQuery(context.Background(), QueryInfo{
		Operation:   "find",
		Dialect:     "sqlite",
		Table:       "s",
		QueryID:     "q-1",
		Fingerprint: 255,
		Identifiers: 4,
	})
	span.End()

	spans := provider.started()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].name != "condbuilder.find s" {
		t.Errorf("unexpected span name %q", spans[0].name)
	}
	if v, ok := attrValue(spans[0].attrs, AttrFingerprint); !ok || v.AsString() != "ff" {
		t.Errorf("unexpected fingerprint attribute %v", v)
	}
	if v, ok := attrValue(spans[0].attrs, AttrIdentifiers); !ok || v.AsInt64() != 4 {
		t.Errorf("unexpected identifiers attribute %v", v)
	}
	if v, ok := attrValue(spans[0].attrs, AttrServiceName); !ok || v.AsString() != "orders" {
		t.Errorf("unexpected service name attribute %v", v)
	}
}

func TestRegisterGORMCallbacks(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	provider := &recordingTracerProvider{}
	disabled := NewConfig(WithTracerProvider(provider))
	if err := disabled.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := RegisterGORMCallbacks(db, disabled); err != nil {
		t.Fatalf("RegisterGORMCallbacks failed: %v", err)
	}

	cfg := NewConfig(WithTracerProvider(provider), WithDetailedDBTracing())
	if err := cfg.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := RegisterGORMCallbacks(db, cfg); err != nil {
		t.Fatalf("RegisterGORMCallbacks failed: %v", err)
	}

	var n int
	if err := db.Raw("SELECT 1").Scan(&n).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(provider.started()) == 0 {
		t.Error("Expected a statement span")
	}
}

func TestRegisterGORMCallbacks_ReplacesEarlierRegistration(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	first := &recordingTracerProvider{}
	second := &recordingTracerProvider{}
	for _, provider := range []*recordingTracerProvider{first, second} {
		cfg := NewConfig(WithTracerProvider(provider), WithDetailedDBTracing())
		if err := cfg.Initialize(); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if err := RegisterGORMCallbacks(db, cfg); err != nil {
			t.Fatalf("RegisterGORMCallbacks failed: %v", err)
		}
	}

	var n int
	if err := db.Raw("SELECT 1").Scan(&n).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got := len(first.started()); got != 0 {
		t.Errorf("Expected the replaced tracer to stay idle, got %d spans", got)
	}
	if got := len(second.started()); got != 1 {
		t.Errorf("Expected exactly 1 statement span, got %d", got)
	}
}

func TestErrorType(t *testing.T) {
	_, err := condition.ExpandIDs([]string{"id"}, nil)
	if got := errorType(err); got != "validation" {
		t.Errorf("Expected validation, got %s", got)
	}
	if got := errorType(context.Canceled); got != "canceled" {
		t.Errorf("Expected canceled, got %s", got)
	}
	if got := errorType(errors.New("disk full")); got != "database" {
		t.Errorf("Expected database, got %s", got)
	}
}
