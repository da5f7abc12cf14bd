package condition

// Builder owns a mutable root AND group. Every successful call appends exactly
// one child; a failed call leaves the builder unchanged.
type Builder struct {
	root Group
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{root: Group{Combinator: And}}
}

// AddGroup appends g as a single child of the root AND group.
func (b *Builder) AddGroup(g *Group) error {
	if g == nil {
		return invalid("", "nil group")
	}
	normalized, err := normalize(g)
	if err != nil {
		return err
	}
	b.root.Children = append(b.root.Children, normalized)
	return nil
}

// AddRawCondition appends a verbatim boolean fragment as a leaf child of the root.
func (b *Builder) AddRawCondition(sql string, args ...any) error {
	raw, err := parseRaw(sql, args)
	if err != nil {
		return err
	}
	b.root.Children = append(b.root.Children, raw)
	return nil
}

// AddComparison appends a single comparison as a leaf child of the root.
func (b *Builder) AddComparison(c *Comparison) error {
	normalized, err := normalize(c)
	if err != nil {
		return err
	}
	b.root.Children = append(b.root.Children, normalized)
	return nil
}

// Add appends any node. Groups keep their grouping.
func (b *Builder) Add(n Node) error {
	normalized, err := normalize(n)
	if err != nil {
		return err
	}
	b.root.Children = append(b.root.Children, normalized)
	return nil
}

// WhereInIDs expands the identifiers and appends them as one OR group.
func (b *Builder) WhereInIDs(keyColumns []string, ids []any) error {
	group, err := ExpandIDs(keyColumns, ids)
	if err != nil {
		return err
	}
	return b.AddGroup(group)
}

// OrWith replaces the current conditions C1..Cn with the single child
// ((C1 AND ... AND Cn) OR n), keeping the root an AND group. On an empty
// builder it behaves like Add.
func (b *Builder) OrWith(n Node) error {
	normalized, err := normalize(n)
	if err != nil {
		return err
	}
	switch len(b.root.Children) {
	case 0:
		b.root.Children = []Node{normalized}
	case 1:
		b.root.Children = []Node{&Group{Combinator: Or, Children: []Node{b.root.Children[0], normalized}}}
	default:
		existing := &Group{Combinator: And, Children: b.root.Children}
		b.root.Children = []Node{&Group{Combinator: Or, Children: []Node{existing, normalized}}}
	}
	return nil
}

// Len returns the number of root children.
func (b *Builder) Len() int {
	return len(b.root.Children)
}

// Reset removes every condition.
func (b *Builder) Reset() {
	b.root.Children = nil
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	return &Builder{root: *b.root.Clone()}
}

// Build returns an immutable snapshot of the current tree. Later calls on the
// builder do not affect it.
func (b *Builder) Build() *Tree {
	return &Tree{root: b.root.Clone()}
}
