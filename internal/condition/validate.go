package condition

import (
	"database/sql/driver"
	"math"
	"reflect"
	"strings"

	"github.com/nlstn/go-condbuilder/internal/sqlexpr"
)

// normalize validates n and returns a deep copy ready to be stored in a tree.
// Raw fragments are trimmed and parsed.
func normalize(n Node) (Node, error) {
	switch node := n.(type) {
	case *Comparison:
		if node == nil {
			return nil, invalid("", "nil comparison")
		}
		if err := validateComparison(node); err != nil {
			return nil, err
		}
		return node.clone(), nil
	case *Raw:
		if node == nil {
			return nil, invalid("", "nil raw condition")
		}
		return parseRaw(node.SQL, node.Args)
	case *Group:
		if node == nil {
			return nil, invalid("", "nil group")
		}
		if !node.Combinator.Valid() {
			return nil, invalid("", "unknown combinator %q", node.Combinator)
		}
		if len(node.Children) == 0 {
			return nil, invalid("", "%s group has no conditions", node.Combinator)
		}
		out := &Group{Combinator: node.Combinator, Children: make([]Node, 0, len(node.Children))}
		for _, child := range node.Children {
			normalized, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, normalized)
		}
		return out, nil
	case nil:
		return nil, invalid("", "nil condition")
	default:
		return nil, invalid("", "unsupported node type %T", n)
	}
}

func parseRaw(sql string, args []any) (*Raw, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, invalid(sql, "condition is empty")
	}
	fragment, err := sqlexpr.Parse(trimmed)
	if err != nil {
		return nil, &InvalidExpressionError{Fragment: trimmed, Reason: "cannot parse condition", Err: err}
	}
	if fragment.Comments > 0 {
		return nil, invalid(trimmed, "comments are not allowed in conditions")
	}
	if fragment.Placeholders != len(args) {
		return nil, invalid(trimmed, "expected %d argument(s) for placeholders, got %d", fragment.Placeholders, len(args))
	}
	for i, arg := range args {
		if !isScalar(arg) {
			return nil, invalid(trimmed, "argument %d has unsupported type %T", i, arg)
		}
		if nonFinite(arg) {
			return nil, invalid(trimmed, "argument %d is not a finite number: %v", i, arg)
		}
	}
	raw := &Raw{SQL: trimmed, parsed: fragment.Expr}
	if len(args) > 0 {
		raw.Args = append([]any(nil), args...)
	}
	return raw, nil
}

func validateComparison(c *Comparison) error {
	if !ValidColumn(c.Column) {
		return invalid("", "invalid column name %q", c.Column)
	}
	if !c.Operator.Valid() {
		return invalid("", "unknown operator %q for column %q", c.Operator, c.Column)
	}
	if c.Operator.Unary() {
		if c.Value != nil {
			return invalid("", "operator %s on column %q takes no value", c.Operator, c.Column)
		}
		return nil
	}
	if c.Value == nil {
		return invalid("", "nil value for column %q; use IS NULL", c.Column)
	}
	if !isScalar(c.Value) {
		return invalid("", "value for column %q has unsupported type %T", c.Column, c.Value)
	}
	if nonFinite(c.Value) {
		return invalid("", "value for column %q is not a finite number: %v", c.Column, c.Value)
	}
	return nil
}

// ValidColumn reports whether name is a plain or alias-qualified identifier
// ("id", "s.id").
func ValidColumn(name string) bool {
	if name == "" {
		return false
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			ch := part[i]
			isLetter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
			isDigit := ch >= '0' && ch <= '9'
			if !isLetter && !(isDigit && i > 0) {
				return false
			}
		}
	}
	return true
}

// isScalar reports whether v can be bound to a single placeholder.
func isScalar(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(driver.Valuer); ok {
		return true
	}
	if _, ok := v.([]byte); ok {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Func, reflect.Chan:
		return false
	}
	return true
}

// nonFinite reports whether v is a NaN or infinite float.
func nonFinite(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return math.IsNaN(f) || math.IsInf(f, 0)
	}
	return false
}
