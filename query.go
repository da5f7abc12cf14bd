package condbuilder

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nlstn/go-condbuilder/internal/condition"
	"github.com/nlstn/go-condbuilder/internal/metadata"
	"github.com/nlstn/go-condbuilder/internal/observability"
	"github.com/nlstn/go-condbuilder/internal/query"
	"github.com/nlstn/go-condbuilder/internal/scope"
)

// Query is a fluent, single-table query over one entity type. The first
// failing call is kept in Error; later calls are no-ops and the execution
// methods return it.
type Query struct {
	repo        *Repository
	meta        *metadata.EntityMetadata
	table       string
	qb          *query.Builder
	queryID     string
	identifiers int

	Error error
}

// Query starts a query on the table of model, a struct, a struct pointer or
// a slice of either.
func (r *Repository) Query(model interface{}) *Query {
	q := &Query{repo: r, queryID: uuid.NewString()}
	meta, err := metadata.AnalyzeEntity(model)
	if err != nil {
		q.Error = fmt.Errorf("condbuilder: %w", err)
		return q
	}
	q.meta = meta
	q.table = r.tableName(model, meta)
	q.qb = query.New(nil, r.dialect).
		WithTable(q.table).
		WithRenderer(r.renderer).
		WithCache(r.cache).
		WithLogger(r.logger)
	return q.fail(scope.Apply(q.qb.Conditions(), r.scopes.For(q.table)))
}

func (q *Query) fail(err error) *Query {
	if err != nil && q.Error == nil {
		q.Error = err
	}
	return q
}

// WhereInIDs replaces every condition of q, except registered scopes, with
// a filter on the entity key. ids are key values for a single-column key,
// column maps for a composite key, or entities of the queried type. A single
// slice argument is expanded.
func (q *Query) WhereInIDs(ids ...interface{}) *Query {
	if q.Error != nil {
		return q
	}
	q.qb.Conditions().Reset()
	q.identifiers = 0
	if err := scope.Apply(q.qb.Conditions(), q.repo.scopes.For(q.table)); err != nil {
		return q.fail(err)
	}
	return q.AndWhereInIDs(ids...)
}

// Scopes ANDs each scope in as its own condition.
func (q *Query) Scopes(scopes ...QueryScope) *Query {
	if q.Error != nil {
		return q
	}
	return q.fail(scope.Apply(q.qb.Conditions(), scopes))
}

// AndWhereInIDs adds a filter on the entity key, AND-ed with the existing
// conditions as one group.
func (q *Query) AndWhereInIDs(ids ...interface{}) *Query {
	if q.Error != nil {
		return q
	}
	normalized, err := q.normalizeIDs(ids)
	if err != nil {
		return q.fail(err)
	}
	if err := q.qb.WhereInIDs(q.meta.KeyColumns(), normalized); err != nil {
		return q.fail(err)
	}
	q.identifiers += len(normalized)
	return q
}

// AndWhere adds a raw boolean fragment with "?" placeholders.
func (q *Query) AndWhere(sql string, args ...interface{}) *Query {
	if q.Error != nil {
		return q
	}
	return q.fail(q.qb.Where(sql, args...))
}

// AndWhereGroup adds g as one parenthesized condition.
func (q *Query) AndWhereGroup(g *Group) *Query {
	if q.Error != nil {
		return q
	}
	return q.fail(q.qb.Conditions().AddGroup(g))
}

// AndWhereColumn adds column op value.
func (q *Query) AndWhereColumn(column string, op Operator, value interface{}) *Query {
	if q.Error != nil {
		return q
	}
	return q.fail(q.qb.Conditions().AddComparison(condition.Compare(column, op, value)))
}

// OrWhere ORs a raw fragment with everything added so far:
// (C1 AND ... AND Cn) OR fragment.
func (q *Query) OrWhere(sql string, args ...interface{}) *Query {
	if q.Error != nil {
		return q
	}
	return q.fail(q.qb.Conditions().OrWith(condition.NewRaw(sql, args...)))
}

// OrderBy adds an ORDER BY column.
func (q *Query) OrderBy(column string, desc bool) *Query {
	if q.Error == nil {
		q.qb.OrderBy(column, desc)
	}
	return q
}

// Limit sets the LIMIT.
func (q *Query) Limit(n int) *Query {
	if q.Error == nil {
		q.qb.Limit(n)
	}
	return q
}

// Offset sets the OFFSET.
func (q *Query) Offset(n int) *Query {
	if q.Error == nil {
		q.qb.Offset(n)
	}
	return q
}

// Tree returns a snapshot of the conditions. It is nil when q has failed.
func (q *Query) Tree() *Tree {
	if q.Error != nil {
		return nil
	}
	return q.qb.Tree()
}

// ToSQL renders the SELECT statement with the dialect's native placeholders.
func (q *Query) ToSQL() (string, []interface{}, error) {
	if q.Error != nil {
		return "", nil, q.Error
	}
	return q.qb.ToSQL()
}

// Find scans the matching rows into dest, a pointer to a slice.
func (q *Query) Find(ctx context.Context, dest interface{}) error {
	return q.run(ctx, "find", func(db *gorm.DB) (int64, error) {
		sql, args, err := q.qb.ToSQL()
		if err != nil {
			return 0, err
		}
		q.logSQL(sql, args)
		result := rawStatement(db, sql, args).Scan(dest)
		return result.RowsAffected, result.Error
	})
}

// Count returns the number of matching rows. ORDER BY, LIMIT and OFFSET are
// ignored.
func (q *Query) Count(ctx context.Context) (int64, error) {
	var count int64
	err := q.run(ctx, "count", func(db *gorm.DB) (int64, error) {
		sql, args, err := q.qb.ToCountSQL()
		if err != nil {
			return 0, err
		}
		q.logSQL(sql, args)
		if err := rawStatement(db, sql, args).Scan(&count).Error; err != nil {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindMaps returns the matching rows as column maps. Text columns come back
// as strings.
func (q *Query) FindMaps(ctx context.Context) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	err := q.run(ctx, "find_maps", func(db *gorm.DB) (int64, error) {
		sql, args, err := q.qb.ToSQL()
		if err != nil {
			return 0, err
		}
		q.logSQL(sql, args)
		rows, err := rawStatement(db, sql, args).Rows()
		if err != nil {
			return 0, err
		}
		defer func() { _ = rows.Close() }()
		out, err = query.ScanMaps(rows)
		return int64(len(out)), err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Query) run(ctx context.Context, operation string, fn func(db *gorm.DB) (int64, error)) error {
	if q.Error != nil {
		return q.Error
	}
	repo := q.repo
	ctx, span := repo.observability.Tracer().StartQuery(ctx, observability.QueryInfo{
		Operation:   operation,
		Dialect:     string(repo.dialect),
		Table:       q.table,
		QueryID:     q.queryID,
		Fingerprint: q.qb.Tree().Fingerprint(),
		Identifiers: q.identifiers,
	})
	defer span.End()

	start := time.Now()
	rows, err := fn(repo.conn(ctx))
	elapsed := time.Since(start)
	repo.observability.Metrics().RecordQuery(ctx, operation, q.table, q.identifiers, elapsed, err)
	observability.RecordError(span, err)
	if err != nil {
		repo.logger.Error("Query failed", "query_id", q.queryID, "operation", operation, "table", q.table, "error", err)
		return fmt.Errorf("condbuilder: %s %s: %w", operation, q.table, err)
	}
	span.SetAttributes(observability.AttrRowsReturned.Int64(rows))
	repo.logger.Debug("Query finished", "query_id", q.queryID, "operation", operation, "rows", rows, "duration", elapsed)
	return nil
}

// rawStatement hands an already rendered statement to gorm. gorm's Raw binds
// every '?' byte, quoted literals included, so the SQL goes in without
// arguments and the driver receives args as they are.
func rawStatement(db *gorm.DB, sql string, args []interface{}) *gorm.DB {
	tx := db.Raw(sql)
	tx.Statement.Vars = append(tx.Statement.Vars[:0], args...)
	return tx
}

func (q *Query) logSQL(sql string, args []interface{}) {
	q.repo.logger.Debug("Executing query", "query_id", q.queryID, "sql", sql, "args", args)
}

// normalizeIDs flattens a single slice argument and turns entities of the
// queried type into key values.
func (q *Query) normalizeIDs(ids []interface{}) ([]interface{}, error) {
	if len(ids) == 1 {
		rv := reflect.ValueOf(ids[0])
		if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
			flat := make([]interface{}, rv.Len())
			for i := range flat {
				flat[i] = rv.Index(i).Interface()
			}
			ids = flat
		}
	}

	out := make([]interface{}, len(ids))
	for i, id := range ids {
		if !q.isEntity(id) {
			out[i] = id
			continue
		}
		key, err := q.meta.KeyValues(id)
		if err != nil {
			return nil, fmt.Errorf("condbuilder: identifier %d: %w", i, err)
		}
		if len(q.meta.KeyProperties) == 1 {
			out[i] = key[q.meta.KeyProperties[0].ColumnName]
			continue
		}
		out[i] = key
	}
	return out, nil
}

func (q *Query) isEntity(v interface{}) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t == q.meta.EntityType
}
