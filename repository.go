package condbuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nlstn/go-condbuilder/internal/metadata"
	"github.com/nlstn/go-condbuilder/internal/observability"
	"github.com/nlstn/go-condbuilder/internal/query"
	"github.com/nlstn/go-condbuilder/internal/render"
	"github.com/nlstn/go-condbuilder/internal/scope"
)

const (
	// DefaultMaxInClauseSize is the default maximum number of values in one
	// rendered IN list. Larger identifier filters are split into OR'd lists.
	DefaultMaxInClauseSize = render.DefaultMaxInClauseSize

	// DefaultStatementCacheSize is the default number of rendered statements
	// kept per repository.
	DefaultStatementCacheSize = query.DefaultStatementCacheSize
)

// RepositoryConfig controls how a Repository renders queries.
type RepositoryConfig struct {
	// MaxInClauseSize limits the number of values in one IN list.
	// Default: 1000. If set to 0 or left unset, DefaultMaxInClauseSize is used.
	MaxInClauseSize int
	// DisableInCollapse renders identifier filters as OR'd equalities instead
	// of IN lists.
	DisableInCollapse bool
	// StatementCacheSize bounds the rendered statement cache.
	// Default: 256. If set to 0 or left unset, DefaultStatementCacheSize is used.
	StatementCacheSize int
}

// Repository runs condition trees against a gorm database.
type Repository struct {
	db            *gorm.DB
	dialect       render.Dialect
	renderer      render.Renderer
	cache         *query.StatementCache
	logger        *slog.Logger
	observability *observability.Config
	scopes        scope.Registry
}

// NewRepository creates a repository with default settings.
func NewRepository(db *gorm.DB) (*Repository, error) {
	return NewRepositoryWithConfig(db, RepositoryConfig{})
}

// NewRepositoryWithConfig creates a repository with custom settings. The
// dialect is taken from the gorm dialector.
func NewRepositoryWithConfig(db *gorm.DB, cfg RepositoryConfig) (*Repository, error) {
	if db == nil {
		return nil, errors.New("condbuilder: db is nil")
	}
	dialect, err := render.ParseDialect(db.Dialector.Name())
	if err != nil {
		return nil, fmt.Errorf("condbuilder: %w", err)
	}

	maxInClauseSize := cfg.MaxInClauseSize
	if maxInClauseSize <= 0 {
		maxInClauseSize = DefaultMaxInClauseSize
	}
	cacheSize := cfg.StatementCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultStatementCacheSize
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		renderer: render.Renderer{
			Dialect:         dialect,
			CollapseIn:      !cfg.DisableInCollapse,
			MaxInClauseSize: maxInClauseSize,
		},
		cache:  query.NewStatementCache(cacheSize),
		logger: slog.Default(),
	}, nil
}

// Dialect returns the dialect queries are rendered for.
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// DB returns the underlying gorm handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// SetLogger sets a custom logger for the repository.
// If logger is nil, slog.Default() is used.
func (r *Repository) SetLogger(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
	return nil
}

// ObservabilityConfig configures tracing and metrics for the repository.
// All providers are optional; nil ones fall back to no-op implementations.
type ObservabilityConfig struct {
	// TracerProvider provides the OpenTelemetry tracer.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the OpenTelemetry meter.
	MeterProvider metric.MeterProvider

	// ServiceName identifies this service in telemetry data.
	// Defaults to "condbuilder" if not specified.
	ServiceName string

	// ServiceVersion is reported as the instrumentation version.
	ServiceVersion string

	// EnableDetailedDBTracing adds a span for every statement gorm executes.
	EnableDetailedDBTracing bool
}

// SetObservability configures OpenTelemetry tracing and metrics. Find,
// Count, FindMaps and Save each record a span, a query count, the duration
// and the number of identifiers filtered on.
func (r *Repository) SetObservability(cfg ObservabilityConfig) error {
	opts := []observability.Option{observability.WithLogger(r.logger)}
	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}
	if cfg.EnableDetailedDBTracing {
		opts = append(opts, observability.WithDetailedDBTracing())
	}

	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	if err := observability.RegisterGORMCallbacks(r.db, obsCfg); err != nil {
		return fmt.Errorf("failed to register GORM callbacks: %w", err)
	}
	r.observability = obsCfg

	r.logger.Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"detailed_db_tracing", cfg.EnableDetailedDBTracing,
		"service_name", obsCfg.ServiceName(),
	)
	return nil
}

// Save inserts or updates rows, a struct pointer or a slice of structs, and
// fills database-generated keys.
func (r *Repository) Save(ctx context.Context, rows interface{}) error {
	meta, err := metadata.AnalyzeEntity(rows)
	if err != nil {
		return fmt.Errorf("condbuilder: save: %w", err)
	}
	table := r.tableName(rows, meta)

	ctx, span := r.observability.Tracer().StartQuery(ctx, observability.QueryInfo{
		Operation: "save",
		Dialect:   string(r.dialect),
		Table:     table,
	})
	defer span.End()

	start := time.Now()
	result := r.conn(ctx).Save(rows)
	err = result.Error
	r.observability.Metrics().RecordQuery(ctx, "save", table, 0, time.Since(start), err)
	observability.RecordError(span, err)
	if err != nil {
		r.logger.Error("Save failed", "table", table, "error", err)
		return fmt.Errorf("condbuilder: save %s: %w", table, err)
	}
	r.logger.Debug("Saved rows", "table", table, "rows", result.RowsAffected)
	return nil
}

// tableName resolves the table gorm uses for model, falling back to the
// metadata naming when gorm cannot parse it.
func (r *Repository) tableName(model interface{}, meta *metadata.EntityMetadata) string {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(model); err == nil && stmt.Schema != nil && stmt.Table != "" {
		return stmt.Table
	}
	return meta.TableName
}

// QueryScope is a raw condition applied to every query on a table.
type QueryScope = scope.QueryScope

// AddScope registers scopes for the table of model. Every later Query on that
// table ANDs them in, and WhereInIDs keeps them.
func (r *Repository) AddScope(model interface{}, scopes ...QueryScope) error {
	meta, err := metadata.AnalyzeEntity(model)
	if err != nil {
		return fmt.Errorf("condbuilder: %w", err)
	}
	if err := r.scopes.Add(r.tableName(model, meta), scopes...); err != nil {
		return fmt.Errorf("condbuilder: %w", err)
	}
	return nil
}

// IDsOf returns the identifiers of entities, a slice of structs or struct
// pointers, in the form Query.WhereInIDs accepts: scalars for a single key,
// column maps for composite keys.
func IDsOf(entities interface{}) ([]interface{}, error) {
	meta, err := metadata.AnalyzeEntity(entities)
	if err != nil {
		return nil, fmt.Errorf("condbuilder: %w", err)
	}
	ids, err := meta.IDs(entities)
	if err != nil {
		return nil, fmt.Errorf("condbuilder: %w", err)
	}
	return ids, nil
}
