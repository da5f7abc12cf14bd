package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Tree is an immutable expression tree whose root is always an AND group.
type Tree struct {
	root *Group
}

// NewTree builds a tree from root children, validating each of them.
func NewTree(children ...Node) (*Tree, error) {
	b := NewBuilder()
	for _, child := range children {
		if err := b.Add(child); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Root returns a deep copy of the root AND group.
func (t *Tree) Root() *Group {
	if t == nil || t.root == nil {
		return &Group{Combinator: And}
	}
	return t.root.Clone()
}

// Children returns deep copies of the root's children.
func (t *Tree) Children() []Node {
	return t.Root().Children
}

// Len returns the number of root children.
func (t *Tree) Len() int {
	if t == nil || t.root == nil {
		return 0
	}
	return len(t.root.Children)
}

// IsEmpty reports whether the tree has no conditions.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// Walk visits every node depth-first in child order, starting with the root.
// Returning false from fn skips the node's children. fn receives nodes of a
// private copy, so changes made to them never reach the tree.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	if t == nil || t.root == nil {
		return
	}
	walk(t.Root(), 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	if g, ok := n.(*Group); ok {
		for _, child := range g.Children {
			walk(child, depth+1, fn)
		}
	}
}

// Equal reports whether two trees are structurally identical, values included.
func (t *Tree) Equal(other *Tree) bool {
	return nodesEqual(t.Root(), other.Root())
}

func nodesEqual(a, b Node) bool {
	switch x := a.(type) {
	case *Comparison:
		y, ok := b.(*Comparison)
		return ok && x.Column == y.Column && x.Operator == y.Operator && reflect.DeepEqual(x.Value, y.Value)
	case *Raw:
		y, ok := b.(*Raw)
		return ok && x.SQL == y.SQL && reflect.DeepEqual(x.Args, y.Args)
	case *Group:
		y, ok := b.(*Group)
		if !ok || x.Combinator != y.Combinator || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Children {
			if !nodesEqual(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Fingerprint hashes the shape of the tree: combinators, columns, operators,
// raw fragment text and argument counts. Bound values are not part of it, so
// trees that render to the same SQL text share a fingerprint.
func (t *Tree) Fingerprint() uint64 {
	d := xxhash.New()
	writeShape(d, t.Root())
	return d.Sum64()
}

func writeShape(d *xxhash.Digest, n Node) {
	switch node := n.(type) {
	case *Comparison:
		_, _ = d.WriteString("C:")
		_, _ = d.WriteString(node.Column)
		_, _ = d.WriteString(" ")
		_, _ = d.WriteString(string(node.Operator))
		_, _ = d.WriteString(";")
	case *Raw:
		_, _ = d.WriteString("R:")
		_, _ = d.WriteString(strconv.Itoa(len(node.SQL)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(node.SQL)
		_, _ = d.WriteString("#")
		_, _ = d.WriteString(strconv.Itoa(len(node.Args)))
		_, _ = d.WriteString(";")
	case *Group:
		_, _ = d.WriteString("G:")
		_, _ = d.WriteString(string(node.Combinator))
		_, _ = d.WriteString("(")
		for _, child := range node.Children {
			writeShape(d, child)
		}
		_, _ = d.WriteString(")")
	}
}

// String renders the tree with every group parenthesized and values inlined.
// It is meant for logs and test failures, not for execution.
func (t *Tree) String() string {
	root := t.Root()
	parts := make([]string, len(root.Children))
	for i, child := range root.Children {
		parts[i] = debugString(child)
	}
	return strings.Join(parts, " AND ")
}

func debugString(n Node) string {
	switch node := n.(type) {
	case *Comparison:
		if node.Operator.Unary() {
			return node.Column + " " + string(node.Operator)
		}
		return fmt.Sprintf("%s %s %s", node.Column, node.Operator, debugValue(node.Value))
	case *Raw:
		sql := node.SQL
		for _, arg := range node.Args {
			sql = strings.Replace(sql, "?", debugValue(arg), 1)
		}
		return "(" + sql + ")"
	case *Group:
		parts := make([]string, len(node.Children))
		for i, child := range node.Children {
			parts[i] = debugString(child)
		}
		return "(" + strings.Join(parts, " "+string(node.Combinator)+" ") + ")"
	}
	return ""
}

func debugValue(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case fmt.Stringer:
		return "'" + val.String() + "'"
	default:
		return fmt.Sprint(v)
	}
}
