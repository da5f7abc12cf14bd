package sqlexpr

import (
	"strconv"
	"strings"
)

// Expr is a node of a parsed WHERE-clause fragment.
type Expr interface {
	exprNode()
	String() string
}

// BinaryExpr covers logical (AND, OR), comparison and arithmetic operators.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr covers NOT and numeric negation.
type UnaryExpr struct {
	Op string
	X  Expr
}

// ParenExpr is an explicitly parenthesized sub-expression.
type ParenExpr struct {
	X Expr
}

// Ident references a column, optionally qualified by an alias ("s.x").
type Ident struct {
	Qualifier string
	Name      string
}

// NumberLit is a numeric literal kept in its source form.
type NumberLit struct {
	Text string
}

// StringLit is a single-quoted string literal.
type StringLit struct {
	Value string
}

// BoolLit is TRUE or FALSE.
type BoolLit struct {
	Value bool
}

// NullLit is the NULL literal.
type NullLit struct{}

// Placeholder is a positional "?" bind parameter. Index is zero based.
type Placeholder struct {
	Index int
}

// IsNullExpr is "x IS [NOT] NULL".
type IsNullExpr struct {
	X   Expr
	Not bool
}

// InExpr is "x [NOT] IN (a, b, ...)".
type InExpr struct {
	X    Expr
	List []Expr
	Not  bool
}

// LikeExpr is "x [NOT] LIKE pattern".
type LikeExpr struct {
	X       Expr
	Pattern Expr
	Not     bool
}

// BetweenExpr is "x [NOT] BETWEEN low AND high".
type BetweenExpr struct {
	X    Expr
	Low  Expr
	High Expr
	Not  bool
}

// CallExpr is a function call such as LOWER(name).
type CallExpr struct {
	Name string
	Args []Expr
	Star bool
}

func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*ParenExpr) exprNode()   {}
func (*Ident) exprNode()       {}
func (*NumberLit) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NullLit) exprNode()     {}
func (*Placeholder) exprNode() {}
func (*IsNullExpr) exprNode()  {}
func (*InExpr) exprNode()      {}
func (*LikeExpr) exprNode()    {}
func (*BetweenExpr) exprNode() {}
func (*CallExpr) exprNode()    {}

func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

func (e *UnaryExpr) String() string {
	if e.Op == "NOT" {
		return "(NOT " + e.X.String() + ")"
	}
	return e.Op + e.X.String()
}

func (e *ParenExpr) String() string {
	switch x := e.X.(type) {
	case *BinaryExpr, *IsNullExpr, *InExpr, *LikeExpr, *BetweenExpr, *ParenExpr:
		return x.String()
	case *UnaryExpr:
		if x.Op == "NOT" {
			return x.String()
		}
	}
	return "(" + e.X.String() + ")"
}

func (e *Ident) String() string {
	if e.Qualifier != "" {
		return e.Qualifier + "." + e.Name
	}
	return e.Name
}

func (e *NumberLit) String() string { return e.Text }

func (e *StringLit) String() string {
	return "'" + strings.ReplaceAll(e.Value, "'", "''") + "'"
}

func (e *BoolLit) String() string {
	if e.Value {
		return "TRUE"
	}
	return "FALSE"
}

func (*NullLit) String() string { return "NULL" }

func (e *Placeholder) String() string { return "?" + strconv.Itoa(e.Index+1) }

func (e *IsNullExpr) String() string {
	if e.Not {
		return "(" + e.X.String() + " IS NOT NULL)"
	}
	return "(" + e.X.String() + " IS NULL)"
}

func (e *InExpr) String() string {
	items := make([]string, len(e.List))
	for i, item := range e.List {
		items[i] = item.String()
	}
	op := " IN ("
	if e.Not {
		op = " NOT IN ("
	}
	return "(" + e.X.String() + op + strings.Join(items, ", ") + "))"
}

func (e *LikeExpr) String() string {
	op := " LIKE "
	if e.Not {
		op = " NOT LIKE "
	}
	return "(" + e.X.String() + op + e.Pattern.String() + ")"
}

func (e *BetweenExpr) String() string {
	op := " BETWEEN "
	if e.Not {
		op = " NOT BETWEEN "
	}
	return "(" + e.X.String() + op + e.Low.String() + " AND " + e.High.String() + ")"
}

func (e *CallExpr) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = arg.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}
