// Package eval evaluates condition trees against in-memory rows with SQL
// semantics: NULL never matches a comparison, numbers compare by value
// whatever their Go type, and strings only compare with strings.
package eval

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nlstn/go-condbuilder/internal/condition"
	"github.com/nlstn/go-condbuilder/internal/sqlexpr"
)

// Match reports whether row satisfies every condition of t. An empty tree
// matches every row. Columns referenced by t must be present in row.
func Match(t *condition.Tree, row map[string]any) (bool, error) {
	result := truish
	for _, child := range t.Children() {
		v, err := evalNode(child, row)
		if err != nil {
			return false, err
		}
		result = and(result, v)
		if result == falsy {
			return false, nil
		}
	}
	return result == truish, nil
}

// Filter returns the rows of rows matched by t, in their original order.
func Filter(t *condition.Tree, rows []map[string]any) ([]map[string]any, error) {
	var out []map[string]any
	for i, row := range rows {
		ok, err := Match(t, row)
		if err != nil {
			return nil, fmt.Errorf("eval: row %d: %w", i, err)
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func evalNode(n condition.Node, row map[string]any) (truth, error) {
	switch node := n.(type) {
	case *condition.Comparison:
		return evalComparison(node, row)
	case *condition.Raw:
		expr := node.Parsed()
		if expr == nil {
			fragment, err := sqlexpr.Parse(node.SQL)
			if err != nil {
				return unknown, err
			}
			expr = fragment.Expr
		}
		v, err := (&exprEval{row: row, args: node.Args}).eval(expr)
		if err != nil {
			return unknown, fmt.Errorf("%s: %w", node.SQL, err)
		}
		return truthy(v)
	case *condition.Group:
		result := truish
		if node.Combinator == condition.Or {
			result = falsy
		}
		for _, child := range node.Children {
			v, err := evalNode(child, row)
			if err != nil {
				return unknown, err
			}
			if node.Combinator == condition.Or {
				result = or(result, v)
			} else {
				result = and(result, v)
			}
		}
		return result, nil
	}
	return unknown, fmt.Errorf("eval: unsupported node %T", n)
}

func evalComparison(c *condition.Comparison, row map[string]any) (truth, error) {
	raw, err := lookup(row, c.Column)
	if err != nil {
		return unknown, err
	}
	left, err := normalizeValue(raw)
	if err != nil {
		return unknown, fmt.Errorf("column %s: %w", c.Column, err)
	}
	switch c.Operator {
	case condition.OpIsNull:
		return fromBool(left == nil), nil
	case condition.OpIsNotNull:
		return fromBool(left != nil), nil
	}

	right, err := normalizeValue(c.Value)
	if err != nil {
		return unknown, fmt.Errorf("column %s: %w", c.Column, err)
	}
	if c.Operator == condition.OpLike {
		return like(left, right)
	}
	return compareOp(string(c.Operator), left, right)
}

// compareOp applies a comparison operator to two normalized values.
func compareOp(op string, left, right any) (truth, error) {
	if left == nil || right == nil {
		return unknown, nil
	}
	cmp, ok := compareValues(left, right)
	if !ok {
		// Values of different kinds are never equal.
		switch op {
		case "=":
			return falsy, nil
		case "<>":
			return truish, nil
		}
		return unknown, fmt.Errorf("eval: cannot compare %T with %T", left, right)
	}
	switch op {
	case "=":
		return fromBool(cmp == 0), nil
	case "<>":
		return fromBool(cmp != 0), nil
	case "<":
		return fromBool(cmp < 0), nil
	case "<=":
		return fromBool(cmp <= 0), nil
	case ">":
		return fromBool(cmp > 0), nil
	case ">=":
		return fromBool(cmp >= 0), nil
	}
	return unknown, fmt.Errorf("eval: unknown operator %q", op)
}

func like(value, pattern any) (truth, error) {
	if value == nil || pattern == nil {
		return unknown, nil
	}
	p, ok := pattern.(string)
	if !ok {
		return unknown, fmt.Errorf("eval: LIKE pattern must be a string, got %T", pattern)
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case decimal.Decimal:
		s = v.String()
	default:
		return unknown, fmt.Errorf("eval: LIKE on %T value", value)
	}
	return fromBool(matchLike(s, p)), nil
}

// lookup resolves a possibly alias-qualified column against row. The
// qualified name is tried first, then the bare column, then a
// case-insensitive match.
func lookup(row map[string]any, column string) (any, error) {
	if v, ok := row[column]; ok {
		return v, nil
	}
	name := column
	if i := strings.LastIndexByte(column, '.'); i >= 0 {
		name = column[i+1:]
		if v, ok := row[name]; ok {
			return v, nil
		}
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("eval: unknown column %q", column)
}

// matchLike implements LIKE with % (any run) and _ (one character).
// Matching is case sensitive and works on runes.
func matchLike(s, pattern string) bool {
	str := []rune(s)
	pat := []rune(pattern)
	// dp[j] reports whether str[:i] matches pat[:j] for the current i.
	dp := make([]bool, len(pat)+1)
	dp[0] = true
	for j := 1; j <= len(pat); j++ {
		dp[j] = dp[j-1] && pat[j-1] == '%'
	}
	for i := 1; i <= len(str); i++ {
		prev := dp[0]
		dp[0] = false
		for j := 1; j <= len(pat); j++ {
			cur := dp[j]
			switch pat[j-1] {
			case '%':
				dp[j] = dp[j] || dp[j-1]
			case '_':
				dp[j] = prev
			default:
				dp[j] = prev && pat[j-1] == str[i-1]
			}
			prev = cur
		}
	}
	return dp[len(pat)]
}
