// Package condbuilder composes SQL WHERE conditions as explicit expression
// trees and runs them through gorm.
//
// The root of every tree is an AND group. Filtering by identifiers adds one
// parenthesized OR group per call, one disjunct per identifier, so a condition
// added afterwards is always AND-ed with the whole identifier filter:
//
//	repo, err := condbuilder.NewRepository(db)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var products []Product
//	err = repo.Query(&Product{}).
//	    WhereInIDs(1, 2, 3, 4).
//	    AndWhere("x = ?", 1).
//	    Find(ctx, &products)
//
// renders as
//
//	SELECT * FROM "products" WHERE ("id" IN (?, ?, ?, ?)) AND (x = ?)
//
// Composite keys expand to one AND group per identifier:
//
//	repo.Query(&OrderLine{}).WhereInIDs(
//	    map[string]any{"order_id": 1, "line_code": 1},
//	    map[string]any{"order_id": 2, "line_code": 1},
//	)
//
// renders as (("order_id" = ? AND "line_code" = ?) OR ("order_id" = ? AND "line_code" = ?)).
//
// Trees can also be built directly with NewBuilder and evaluated in memory
// with Match and Filter.
package condbuilder

import (
	"github.com/nlstn/go-condbuilder/internal/condition"
	"github.com/nlstn/go-condbuilder/internal/render"
)

type (
	// Tree is an immutable condition tree whose root is an AND group.
	Tree = condition.Tree
	// Node is a *Comparison, a *Raw or a *Group.
	Node = condition.Node
	// Group joins its children with one combinator and renders parenthesized.
	Group = condition.Group
	// Comparison is a column-operator-value condition.
	Comparison = condition.Comparison
	// Raw is a boolean SQL fragment with "?" placeholders.
	Raw = condition.Raw
	// Operator is the operator of a Comparison.
	Operator = condition.Operator
	// Combinator joins the children of a Group.
	Combinator = condition.Combinator
	// Builder accumulates conditions under the root AND.
	Builder = condition.Builder

	// MalformedIdentifierError reports an identifier filter that cannot be expanded.
	MalformedIdentifierError = condition.MalformedIdentifierError
	// InvalidExpressionError reports a fragment or group that cannot join a tree.
	InvalidExpressionError = condition.InvalidExpressionError

	// Dialect is the SQL flavour a tree is rendered for.
	Dialect = render.Dialect
)

const (
	And = condition.And
	Or  = condition.Or

	OpEq        = condition.OpEq
	OpNeq       = condition.OpNeq
	OpLt        = condition.OpLt
	OpLte       = condition.OpLte
	OpGt        = condition.OpGt
	OpGte       = condition.OpGte
	OpLike      = condition.OpLike
	OpIsNull    = condition.OpIsNull
	OpIsNotNull = condition.OpIsNotNull

	SQLite   = render.SQLite
	Postgres = render.Postgres
	MySQL    = render.MySQL
)

var (
	// ErrMalformedIdentifier matches every *MalformedIdentifierError.
	ErrMalformedIdentifier = condition.ErrMalformedIdentifier
	// ErrInvalidExpression matches every *InvalidExpressionError.
	ErrInvalidExpression = condition.ErrInvalidExpression
)

// NewBuilder returns an empty condition builder.
func NewBuilder() *Builder {
	return condition.NewBuilder()
}

// ExpandIDs turns identifiers into one OR group. A single key column accepts
// scalars or one-entry maps; composite keys need a map per identifier
// holding exactly the key columns.
func ExpandIDs(keyColumns []string, ids []any) (*Group, error) {
	return condition.ExpandIDs(keyColumns, ids)
}

// Eq returns column = value.
func Eq(column string, value any) *Comparison {
	return condition.Eq(column, value)
}

// Compare returns column op value.
func Compare(column string, op Operator, value any) *Comparison {
	return condition.Compare(column, op, value)
}

// NewRaw returns a raw fragment. It is validated when added to a builder.
func NewRaw(sql string, args ...any) *Raw {
	return condition.NewRaw(sql, args...)
}

// AllOf groups children with AND.
func AllOf(children ...Node) *Group {
	return condition.AllOf(children...)
}

// AnyOf groups children with OR.
func AnyOf(children ...Node) *Group {
	return condition.AnyOf(children...)
}

// ParseDialect maps a driver or dialector name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	return render.ParseDialect(name)
}

// Render returns the WHERE-clause body for t in dialect d, with "?"
// placeholders and identifier filters collapsed into IN lists.
func Render(d Dialect, t *Tree) (string, []any, error) {
	return render.New(d).Render(t)
}
