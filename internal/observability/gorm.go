package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const spanInstanceKey = "condbuilder:span"

// RegisterGORMCallbacks adds a span around every statement gorm executes.
// It is a no-op unless detailed DB tracing is enabled.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if db == nil || !cfg.DetailedDBTracing() {
		return nil
	}
	tracer := cfg.Tracer()

	before := func(tx *gorm.DB) {
		ctx, span := tracer.StartStatement(tx.Statement.Context, tx.Dialector.Name(), tx.Statement.Table)
		tx.Statement.Context = ctx
		tx.InstanceSet(spanInstanceKey, span)
	}
	after := func(tx *gorm.DB) {
		v, ok := tx.InstanceGet(spanInstanceKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		span.SetAttributes(AttrDBStatement.String(tx.Statement.SQL.String()))
		RecordError(span, tx.Error)
		span.End()
	}

	processors := []struct {
		name          string
		get           func(name string) func(*gorm.DB)
		before, after callbackRegistrar
	}{
		{"query", db.Callback().Query().Get, db.Callback().Query().Before("gorm:query"), db.Callback().Query().After("gorm:query")},
		{"row", db.Callback().Row().Get, db.Callback().Row().Before("gorm:row"), db.Callback().Row().After("gorm:row")},
		{"raw", db.Callback().Raw().Get, db.Callback().Raw().Before("gorm:raw"), db.Callback().Raw().After("gorm:raw")},
		{"create", db.Callback().Create().Get, db.Callback().Create().Before("gorm:create"), db.Callback().Create().After("gorm:create")},
		{"update", db.Callback().Update().Get, db.Callback().Update().Before("gorm:update"), db.Callback().Update().After("gorm:update")},
		{"delete", db.Callback().Delete().Get, db.Callback().Delete().Before("gorm:delete"), db.Callback().Delete().After("gorm:delete")},
	}
	for _, p := range processors {
		if err := setCallback(p.get, p.before, "condbuilder:before_"+p.name, before); err != nil {
			return fmt.Errorf("failed to register before %s callback: %w", p.name, err)
		}
		if err := setCallback(p.get, p.after, "condbuilder:after_"+p.name, after); err != nil {
			return fmt.Errorf("failed to register after %s callback: %w", p.name, err)
		}
	}
	return nil
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
	Replace(name string, fn func(*gorm.DB)) error
}

// setCallback replaces a callback left by an earlier registration so that
// every statement keeps a single span.
func setCallback(get func(string) func(*gorm.DB), r callbackRegistrar, name string, fn func(*gorm.DB)) error {
	if get(name) != nil {
		return r.Replace(name, fn)
	}
	return r.Register(name, fn)
}
