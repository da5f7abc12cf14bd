// Package render turns condition trees into WHERE-clause SQL. Every group is
// wrapped in parentheses at its boundary, whatever its size, so the OR-expanded
// identifier filter can never bleed into the surrounding conjunction.
package render

import (
	"fmt"
	"strings"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

// DefaultMaxInClauseSize is the largest number of values placed in a single
// IN list. Oracle has a hard limit of 1000, so this is a safe cross-database default.
const DefaultMaxInClauseSize = 1000

// Renderer renders trees for one dialect. Placeholders are always "?".
type Renderer struct {
	Dialect Dialect
	// CollapseIn renders an OR group of equalities on one column as
	// "col IN (...)".
	CollapseIn bool
	// MaxInClauseSize splits collapsed IN lists into OR'd chunks of at most
	// this many values. Zero or negative means DefaultMaxInClauseSize.
	MaxInClauseSize int
}

// New returns a renderer with IN collapsing enabled and the default limit.
func New(dialect Dialect) *Renderer {
	return &Renderer{
		Dialect:         dialect,
		CollapseIn:      true,
		MaxInClauseSize: DefaultMaxInClauseSize,
	}
}

// Render returns the WHERE-clause body for t (without the WHERE keyword) and
// its arguments in placeholder order. An empty tree renders as "".
func (r *Renderer) Render(t *condition.Tree) (string, []any, error) {
	if t.IsEmpty() {
		return "", nil, nil
	}
	var sb strings.Builder
	var args []any
	for i, child := range t.Children() {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		var err error
		args, err = r.renderNode(&sb, child, args)
		if err != nil {
			return "", nil, err
		}
	}
	return sb.String(), args, nil
}

func (r *Renderer) renderNode(sb *strings.Builder, n condition.Node, args []any) ([]any, error) {
	switch node := n.(type) {
	case *condition.Comparison:
		sb.WriteString(r.Dialect.QuoteIdentifier(node.Column))
		sb.WriteString(" ")
		sb.WriteString(string(node.Operator))
		if node.Operator.Unary() {
			return args, nil
		}
		sb.WriteString(" ?")
		return append(args, node.Value), nil
	case *condition.Raw:
		sb.WriteString("(")
		sb.WriteString(node.SQL)
		sb.WriteString(")")
		return append(args, node.Args...), nil
	case *condition.Group:
		if len(node.Children) == 0 {
			return nil, fmt.Errorf("render: empty %s group", node.Combinator)
		}
		if column, values, ok := r.inList(node); ok {
			return r.renderIn(sb, column, values, args), nil
		}
		sb.WriteString("(")
		for i, child := range node.Children {
			if i > 0 {
				sb.WriteString(" ")
				sb.WriteString(string(node.Combinator))
				sb.WriteString(" ")
			}
			var err error
			args, err = r.renderNode(sb, child, args)
			if err != nil {
				return nil, err
			}
		}
		sb.WriteString(")")
		return args, nil
	default:
		return nil, fmt.Errorf("render: unsupported node %T", n)
	}
}

// inList reports whether g is an OR of equalities on a single column.
func (r *Renderer) inList(g *condition.Group) (string, []any, bool) {
	if !r.CollapseIn || g.Combinator != condition.Or {
		return "", nil, false
	}
	var column string
	values := make([]any, 0, len(g.Children))
	for _, child := range g.Children {
		cmp, ok := child.(*condition.Comparison)
		if !ok || cmp.Operator != condition.OpEq {
			return "", nil, false
		}
		if column == "" {
			column = cmp.Column
		} else if cmp.Column != column {
			return "", nil, false
		}
		values = append(values, cmp.Value)
	}
	return column, values, true
}

func (r *Renderer) renderIn(sb *strings.Builder, column string, values []any, args []any) []any {
	limit := r.MaxInClauseSize
	if limit <= 0 {
		limit = DefaultMaxInClauseSize
	}
	quoted := r.Dialect.QuoteIdentifier(column)

	sb.WriteString("(")
	for start := 0; start < len(values); start += limit {
		end := start + limit
		if end > len(values) {
			end = len(values)
		}
		if start > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(quoted)
		sb.WriteString(" IN (")
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
		}
		sb.WriteString(")")
		args = append(args, values[start:end]...)
	}
	sb.WriteString(")")
	return args
}
