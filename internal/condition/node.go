// Package condition holds the boolean expression tree that query builders
// assemble before rendering. Groups are explicit nodes so that the OR-expanded
// identifier filter always reaches the renderer as one unit.
package condition

import (
	"github.com/nlstn/go-condbuilder/internal/sqlexpr"
)

// Combinator joins the children of a Group.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Valid reports whether c is a known combinator.
func (c Combinator) Valid() bool {
	return c == And || c == Or
}

// Operator is the comparison used by a Comparison node.
type Operator string

const (
	OpEq        Operator = "="
	OpNeq       Operator = "<>"
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpLike      Operator = "LIKE"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpLike, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Unary reports whether the operator takes no value.
func (o Operator) Unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Node is an element of an expression tree: a *Comparison, a *Raw or a *Group.
type Node interface {
	isNode()
	clone() Node
}

// Comparison is a single column-operator-value condition.
type Comparison struct {
	Column   string
	Operator Operator
	Value    any
}

// Raw is a boolean fragment supplied verbatim, with "?" placeholders bound to Args.
type Raw struct {
	SQL  string
	Args []any

	parsed sqlexpr.Expr
}

// Group joins its children with a single combinator and is always treated as
// one logical unit by renderers.
type Group struct {
	Combinator Combinator
	Children   []Node
}

func (*Comparison) isNode() {}
func (*Raw) isNode()        {}
func (*Group) isNode()      {}

func (c *Comparison) clone() Node {
	cp := *c
	return &cp
}

func (r *Raw) clone() Node {
	cp := *r
	if r.Args != nil {
		cp.Args = append([]any(nil), r.Args...)
	}
	return &cp
}

func (g *Group) clone() Node {
	return g.Clone()
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	cp := &Group{Combinator: g.Combinator}
	if g.Children != nil {
		cp.Children = make([]Node, len(g.Children))
		for i, child := range g.Children {
			cp.Children[i] = child.clone()
		}
	}
	return cp
}

// Parsed returns the parsed form of the fragment once it has been accepted by
// a Builder, or nil.
func (r *Raw) Parsed() sqlexpr.Expr {
	return r.parsed
}

// Eq creates an equality comparison.
func Eq(column string, value any) *Comparison {
	return &Comparison{Column: column, Operator: OpEq, Value: value}
}

// Compare creates a comparison with an arbitrary operator.
func Compare(column string, op Operator, value any) *Comparison {
	return &Comparison{Column: column, Operator: op, Value: value}
}

// NewRaw creates a raw fragment.
func NewRaw(sql string, args ...any) *Raw {
	return &Raw{SQL: sql, Args: args}
}

// AllOf creates an AND group.
func AllOf(children ...Node) *Group {
	return &Group{Combinator: And, Children: children}
}

// AnyOf creates an OR group.
func AnyOf(children ...Node) *Group {
	return &Group{Combinator: Or, Children: children}
}
