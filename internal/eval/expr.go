package eval

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nlstn/go-condbuilder/internal/sqlexpr"
)

// exprEval evaluates a parsed raw fragment. Every result is a normalized
// value; predicates yield bool or nil (unknown).
type exprEval struct {
	row  map[string]any
	args []any
}

func (e *exprEval) eval(expr sqlexpr.Expr) (any, error) {
	switch x := expr.(type) {
	case *sqlexpr.ParenExpr:
		return e.eval(x.X)
	case *sqlexpr.Ident:
		column := x.Name
		if x.Qualifier != "" {
			column = x.Qualifier + "." + x.Name
		}
		v, err := lookup(e.row, column)
		if err != nil {
			return nil, err
		}
		return normalizeValue(v)
	case *sqlexpr.NumberLit:
		d, err := decimal.NewFromString(x.Text)
		if err != nil {
			return nil, fmt.Errorf("eval: bad number %q: %w", x.Text, err)
		}
		return d, nil
	case *sqlexpr.StringLit:
		return x.Value, nil
	case *sqlexpr.BoolLit:
		return x.Value, nil
	case *sqlexpr.NullLit:
		return nil, nil
	case *sqlexpr.Placeholder:
		if x.Index >= len(e.args) {
			return nil, fmt.Errorf("eval: no argument for placeholder %d", x.Index+1)
		}
		return normalizeValue(e.args[x.Index])
	case *sqlexpr.UnaryExpr:
		return e.evalUnary(x)
	case *sqlexpr.BinaryExpr:
		return e.evalBinary(x)
	case *sqlexpr.IsNullExpr:
		v, err := e.eval(x.X)
		if err != nil {
			return nil, err
		}
		return (v == nil) != x.Not, nil
	case *sqlexpr.InExpr:
		return e.evalIn(x)
	case *sqlexpr.LikeExpr:
		value, err := e.eval(x.X)
		if err != nil {
			return nil, err
		}
		pattern, err := e.eval(x.Pattern)
		if err != nil {
			return nil, err
		}
		t, err := like(value, pattern)
		if err != nil {
			return nil, err
		}
		if x.Not {
			t = t.not()
		}
		return t.value(), nil
	case *sqlexpr.BetweenExpr:
		return e.evalBetween(x)
	case *sqlexpr.CallExpr:
		return e.evalCall(x)
	}
	return nil, fmt.Errorf("eval: unsupported expression %T", expr)
}

func (e *exprEval) evalUnary(x *sqlexpr.UnaryExpr) (any, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "NOT":
		t, err := truthy(v)
		if err != nil {
			return nil, err
		}
		return t.not().value(), nil
	case "-":
		if v == nil {
			return nil, nil
		}
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("eval: cannot negate %T", v)
		}
		return d.Neg(), nil
	}
	return nil, fmt.Errorf("eval: unknown unary operator %q", x.Op)
}

func (e *exprEval) evalBinary(x *sqlexpr.BinaryExpr) (any, error) {
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "AND", "OR":
		lt, err := truthy(left)
		if err != nil {
			return nil, err
		}
		if (x.Op == "AND" && lt == falsy) || (x.Op == "OR" && lt == truish) {
			return lt.value(), nil
		}
		right, err := e.eval(x.Right)
		if err != nil {
			return nil, err
		}
		rt, err := truthy(right)
		if err != nil {
			return nil, err
		}
		if x.Op == "AND" {
			return and(lt, rt).value(), nil
		}
		return or(lt, rt).value(), nil
	}

	right, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "=", "<>", "<", "<=", ">", ">=":
		t, err := compareOp(x.Op, left, right)
		if err != nil {
			return nil, err
		}
		return t.value(), nil
	case "||":
		if left == nil || right == nil {
			return nil, nil
		}
		return text(left) + text(right), nil
	case "+", "-", "*", "/":
		return arithmetic(x.Op, left, right)
	}
	return nil, fmt.Errorf("eval: unknown operator %q", x.Op)
}

func (e *exprEval) evalIn(x *sqlexpr.InExpr) (any, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	result := falsy
	for _, item := range x.List {
		candidate, err := e.eval(item)
		if err != nil {
			return nil, err
		}
		t, err := compareOp("=", v, candidate)
		if err != nil {
			return nil, err
		}
		result = or(result, t)
		if result == truish {
			break
		}
	}
	if x.Not {
		result = result.not()
	}
	return result.value(), nil
}

func (e *exprEval) evalBetween(x *sqlexpr.BetweenExpr) (any, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	low, err := e.eval(x.Low)
	if err != nil {
		return nil, err
	}
	high, err := e.eval(x.High)
	if err != nil {
		return nil, err
	}
	lower, err := compareOp(">=", v, low)
	if err != nil {
		return nil, err
	}
	upper, err := compareOp("<=", v, high)
	if err != nil {
		return nil, err
	}
	result := and(lower, upper)
	if x.Not {
		result = result.not()
	}
	return result.value(), nil
}

func (e *exprEval) evalCall(x *sqlexpr.CallExpr) (any, error) {
	args := make([]any, len(x.Args))
	for i, arg := range x.Args {
		v, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch x.Name {
	case "COALESCE":
		for _, v := range args {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("eval: %s expects 1 argument, got %d", x.Name, len(args))
	}
	v := args[0]
	if v == nil {
		return nil, nil
	}
	switch x.Name {
	case "LOWER":
		return strings.ToLower(text(v)), nil
	case "UPPER":
		return strings.ToUpper(text(v)), nil
	case "LENGTH":
		return decimal.NewFromInt(int64(len([]rune(text(v))))), nil
	case "TRIM":
		return strings.TrimSpace(text(v)), nil
	case "ABS":
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("eval: ABS of %T", v)
		}
		return d.Abs(), nil
	}
	return nil, fmt.Errorf("eval: unsupported function %s", x.Name)
}

func arithmetic(op string, left, right any) (any, error) {
	if left == nil || right == nil {
		return nil, nil
	}
	l, lok := left.(decimal.Decimal)
	r, rok := right.(decimal.Decimal)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: %T %s %T", left, op, right)
	}
	switch op {
	case "+":
		return l.Add(r), nil
	case "-":
		return l.Sub(r), nil
	case "*":
		return l.Mul(r), nil
	default:
		// Division by zero yields NULL, as in sqlite and mysql.
		if r.IsZero() {
			return nil, nil
		}
		return l.Div(r), nil
	}
}

func text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	}
	return fmt.Sprint(v)
}
