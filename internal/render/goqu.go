package render

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

// Goqu converts t into a goqu expression so that trees can be attached to
// goqu datasets. Groups become goqu.And/goqu.Or lists and raw fragments are
// wrapped in parentheses. The result is logically equivalent to Render, but
// goqu flattens single-element lists, so a one-identifier OR group is not
// wrapped the way Render wraps it. An empty tree returns nil.
func (r *Renderer) Goqu(t *condition.Tree) (exp.Expression, error) {
	if t.IsEmpty() {
		return nil, nil
	}
	children := t.Children()
	exps := make([]exp.Expression, 0, len(children))
	for _, child := range children {
		e, err := r.goquNode(child)
		if err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return goqu.And(exps...), nil
}

// GoquSelect builds a prepared "SELECT * FROM table WHERE ..." statement for
// the renderer's dialect. It is used to cross-check Render output.
func (r *Renderer) GoquSelect(table string, t *condition.Tree) (string, []any, error) {
	ds := goqu.Dialect(r.Dialect.goquName()).From(goqu.T(table)).Prepared(true)
	where, err := r.Goqu(t)
	if err != nil {
		return "", nil, err
	}
	if where != nil {
		ds = ds.Where(where)
	}
	sql, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("render: goqu select for %s: %w", r.Dialect, err)
	}
	return sql, args, nil
}

func (r *Renderer) goquNode(n condition.Node) (exp.Expression, error) {
	switch node := n.(type) {
	case *condition.Comparison:
		return goquComparison(node)
	case *condition.Raw:
		return goqu.L("("+node.SQL+")", node.Args...), nil
	case *condition.Group:
		if len(node.Children) == 0 {
			return nil, fmt.Errorf("render: empty %s group", node.Combinator)
		}
		if column, values, ok := r.inList(node); ok {
			return r.goquIn(column, values), nil
		}
		exps := make([]exp.Expression, 0, len(node.Children))
		for _, child := range node.Children {
			e, err := r.goquNode(child)
			if err != nil {
				return nil, err
			}
			exps = append(exps, e)
		}
		if node.Combinator == condition.Or {
			return goqu.Or(exps...), nil
		}
		return goqu.And(exps...), nil
	default:
		return nil, fmt.Errorf("render: unsupported node %T", n)
	}
}

func (r *Renderer) goquIn(column string, values []any) exp.Expression {
	limit := r.MaxInClauseSize
	if limit <= 0 {
		limit = DefaultMaxInClauseSize
	}
	ident := goqu.I(column)
	var chunks []exp.Expression
	for start := 0; start < len(values); start += limit {
		end := start + limit
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, ident.In(values[start:end]...))
	}
	return goqu.Or(chunks...)
}

func goquComparison(c *condition.Comparison) (exp.Expression, error) {
	ident := goqu.I(c.Column)
	switch c.Operator {
	case condition.OpEq:
		return ident.Eq(c.Value), nil
	case condition.OpNeq:
		return ident.Neq(c.Value), nil
	case condition.OpLt:
		return ident.Lt(c.Value), nil
	case condition.OpLte:
		return ident.Lte(c.Value), nil
	case condition.OpGt:
		return ident.Gt(c.Value), nil
	case condition.OpGte:
		return ident.Gte(c.Value), nil
	case condition.OpLike:
		return ident.Like(c.Value), nil
	case condition.OpIsNull:
		return ident.IsNull(), nil
	case condition.OpIsNotNull:
		return ident.IsNotNull(), nil
	default:
		return nil, fmt.Errorf("render: unsupported operator %q", c.Operator)
	}
}
