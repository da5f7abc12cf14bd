package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nlstn/go-condbuilder/internal/condition"
	"github.com/nlstn/go-condbuilder/internal/render"
)

// Builder accumulates the clauses of a single-table SELECT. Conditions are
// kept as a condition tree and rendered with explicit grouping, so nothing
// registered through WhereInIDs can bleed into a later AND.
type Builder struct {
	db       *sql.DB
	renderer render.Renderer
	table    string
	conds    *condition.Builder
	selects  []string
	orderBys []orderBy
	limit    *int
	offset   int
	logger   *slog.Logger
	cache    *StatementCache
}

type orderBy struct {
	column string
	desc   bool
}

// New creates a query builder for db. db may be nil when only SQL generation
// is needed.
func New(db *sql.DB, dialect render.Dialect) *Builder {
	return &Builder{
		db:       db,
		renderer: *render.New(dialect),
		conds:    condition.NewBuilder(),
		logger:   slog.Default(),
	}
}

// WithTable sets the target table for the query
func (qb *Builder) WithTable(table string) *Builder {
	qb.table = table
	return qb
}

// WithRenderer replaces the renderer settings (IN collapsing and chunk size).
// The dialect given to New is kept.
func (qb *Builder) WithRenderer(r render.Renderer) *Builder {
	dialect := qb.renderer.Dialect
	qb.renderer = r
	qb.renderer.Dialect = dialect
	return qb
}

// WithConditions replaces the conditions with a copy of c.
func (qb *Builder) WithConditions(c *condition.Builder) *Builder {
	qb.conds = c.Clone()
	return qb
}

// WithCache attaches a statement cache shared between builders.
func (qb *Builder) WithCache(c *StatementCache) *Builder {
	qb.cache = c
	return qb
}

// WithLogger sets the logger for the query builder
func (qb *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		qb.logger = logger
	}
	return qb
}

// Dialect returns the dialect the builder renders for.
func (qb *Builder) Dialect() render.Dialect {
	return qb.renderer.Dialect
}

// Conditions exposes the condition builder backing the WHERE clause.
func (qb *Builder) Conditions() *condition.Builder {
	return qb.conds
}

// Where adds a raw boolean fragment as one AND-ed condition.
func (qb *Builder) Where(sql string, args ...any) error {
	return qb.conds.AddRawCondition(sql, args...)
}

// WhereInIDs adds the identifier filter for keyColumns as one AND-ed group.
func (qb *Builder) WhereInIDs(keyColumns []string, ids []any) error {
	return qb.conds.WhereInIDs(keyColumns, ids)
}

// Select sets the SELECT columns for the query
func (qb *Builder) Select(cols ...string) *Builder {
	qb.selects = append(qb.selects, cols...)
	return qb
}

// OrderBy adds an ORDER BY column
func (qb *Builder) OrderBy(column string, desc bool) *Builder {
	qb.orderBys = append(qb.orderBys, orderBy{column: column, desc: desc})
	return qb
}

// Limit sets the LIMIT for the query
func (qb *Builder) Limit(n int) *Builder {
	qb.limit = &n
	return qb
}

// Offset sets the OFFSET for the query
func (qb *Builder) Offset(n int) *Builder {
	qb.offset = n
	return qb
}

// Clone creates an independent copy of the query builder
func (qb *Builder) Clone() *Builder {
	clone := &Builder{
		db:       qb.db,
		renderer: qb.renderer,
		table:    qb.table,
		conds:    qb.conds.Clone(),
		selects:  append([]string{}, qb.selects...),
		orderBys: append([]orderBy{}, qb.orderBys...),
		offset:   qb.offset,
		logger:   qb.logger,
		cache:    qb.cache,
	}
	if qb.limit != nil {
		limitCopy := *qb.limit
		clone.limit = &limitCopy
	}
	return clone
}

// Tree returns a snapshot of the current conditions.
func (qb *Builder) Tree() *condition.Tree {
	return qb.conds.Build()
}

// ToSQL builds the final SELECT statement with placeholders in the
// dialect's native form ("$n" for postgres).
func (qb *Builder) ToSQL() (string, []any, error) {
	return qb.statement(kindSelect)
}

// ToCountSQL builds a COUNT(*) query based on the current query builder state
func (qb *Builder) ToCountSQL() (string, []any, error) {
	return qb.statement(kindCount)
}

type statementKind string

const (
	kindSelect statementKind = "select"
	kindCount  statementKind = "count"
)

func (qb *Builder) statement(kind statementKind) (string, []any, error) {
	tree := qb.conds.Build()

	var key uint64
	if qb.cache != nil {
		key = qb.cacheKey(kind, tree)
		if query, ok := qb.cache.Get(key); ok {
			return query, collectArgs(tree), nil
		}
	}

	where, args, err := qb.renderer.Render(tree)
	if err != nil {
		return "", nil, err
	}

	var query string
	switch kind {
	case kindCount:
		query, err = qb.buildCount(where)
	default:
		query, err = qb.buildSelect(where)
	}
	if err != nil {
		return "", nil, err
	}

	// Convert placeholders for PostgreSQL ($1, $2, ...)
	if qb.renderer.Dialect == render.Postgres {
		query = convertToPostgresPlaceholders(query)
	}

	if qb.cache != nil {
		qb.cache.Set(key, query)
	}
	return query, args, nil
}

func (qb *Builder) buildSelect(where string) (string, error) {
	var sql strings.Builder

	// SELECT clause
	sql.WriteString("SELECT ")
	if len(qb.selects) > 0 {
		cols := make([]string, 0, len(qb.selects))
		for _, col := range qb.selects {
			if !condition.ValidColumn(col) {
				return "", fmt.Errorf("query: invalid select column %q", col)
			}
			cols = append(cols, qb.renderer.Dialect.QuoteIdentifier(col))
		}
		sql.WriteString(strings.Join(cols, ", "))
	} else {
		sql.WriteString("*")
	}

	if err := qb.writeFrom(&sql, where); err != nil {
		return "", err
	}

	// ORDER BY clause
	if len(qb.orderBys) > 0 {
		sql.WriteString(" ORDER BY ")
		for i, o := range qb.orderBys {
			if !condition.ValidColumn(o.column) {
				return "", fmt.Errorf("query: invalid order column %q", o.column)
			}
			if i > 0 {
				sql.WriteString(", ")
			}
			sql.WriteString(qb.renderer.Dialect.QuoteIdentifier(o.column))
			if o.desc {
				sql.WriteString(" DESC")
			} else {
				sql.WriteString(" ASC")
			}
		}
	}

	// LIMIT and OFFSET
	if qb.limit != nil {
		sql.WriteString(fmt.Sprintf(" LIMIT %d", *qb.limit))
	} else if qb.offset > 0 && qb.renderer.Dialect == render.MySQL {
		// MySQL requires LIMIT when OFFSET is used
		sql.WriteString(" LIMIT 2147483647")
	}

	if qb.offset > 0 {
		sql.WriteString(fmt.Sprintf(" OFFSET %d", qb.offset))
	}

	return sql.String(), nil
}

func (qb *Builder) buildCount(where string) (string, error) {
	var sql strings.Builder
	sql.WriteString("SELECT COUNT(*)")
	if err := qb.writeFrom(&sql, where); err != nil {
		return "", err
	}
	return sql.String(), nil
}

func (qb *Builder) writeFrom(sql *strings.Builder, where string) error {
	if qb.table == "" {
		return fmt.Errorf("query: no table set")
	}
	table, err := quoteTableName(qb.renderer.Dialect, qb.table)
	if err != nil {
		return err
	}
	sql.WriteString(" FROM ")
	sql.WriteString(table)

	// An empty tree adds no WHERE clause.
	if where != "" {
		sql.WriteString(" WHERE ")
		sql.WriteString(where)
	}
	return nil
}

// QueryContext executes the query and returns the result rows
func (qb *Builder) QueryContext(ctx context.Context) (*sql.Rows, error) {
	query, args, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	if qb.logger != nil {
		qb.logger.Debug("Executing query", "sql", query, "args", args)
	}

	return qb.db.QueryContext(ctx, query, args...)
}

// CountContext executes the count query and returns the count
func (qb *Builder) CountContext(ctx context.Context) (int64, error) {
	query, args, err := qb.ToCountSQL()
	if err != nil {
		return 0, err
	}

	if qb.logger != nil {
		qb.logger.Debug("Executing count query", "sql", query, "args", args)
	}

	var count int64
	err = qb.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// SelectMaps executes the query and returns every row as a column map.
func (qb *Builder) SelectMaps(ctx context.Context) ([]map[string]any, error) {
	query, args, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	if qb.logger != nil {
		qb.logger.Debug("Executing map query", "sql", query, "args", args)
	}

	rows, err := sqlx.NewDb(qb.db, driverName(qb.renderer.Dialect)).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(row))
	}
	return out, rows.Err()
}

// ScanMaps reads every remaining row of rows into column maps. rows is not
// closed.
func ScanMaps(rows *sql.Rows) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := sqlx.MapScan(rows, row); err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(row))
	}
	return out, rows.Err()
}

// normalizeRow turns driver byte slices into strings.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}

func driverName(d render.Dialect) string {
	switch d {
	case render.Postgres:
		return "postgres"
	case render.MySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

// collectArgs returns the bind arguments of t in the order Render emits them.
func collectArgs(t *condition.Tree) []any {
	var args []any
	t.Walk(func(n condition.Node, _ int) bool {
		switch node := n.(type) {
		case *condition.Comparison:
			if !node.Operator.Unary() {
				args = append(args, node.Value)
			}
		case *condition.Raw:
			args = append(args, node.Args...)
		}
		return true
	})
	return args
}

// quoteTableName quotes a table name, optionally schema-qualified.
func quoteTableName(d render.Dialect, table string) (string, error) {
	if !condition.ValidColumn(table) {
		return "", fmt.Errorf("query: invalid table name %q", table)
	}
	return d.QuoteIdentifier(table), nil
}

// convertToPostgresPlaceholders converts ? placeholders to $1, $2, ... for
// PostgreSQL. Question marks inside quoted literals and identifiers are kept.
func convertToPostgresPlaceholders(query string) string {
	var result strings.Builder
	placeholderNum := 1
	var quote byte

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			result.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			result.WriteByte(ch)
		case ch == '?':
			result.WriteString(fmt.Sprintf("$%d", placeholderNum))
			placeholderNum++
		default:
			result.WriteByte(ch)
		}
	}

	return result.String()
}
