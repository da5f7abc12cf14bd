package condition

import (
	"reflect"
	"sort"
	"strings"
)

// ExpandIDs translates identifier values into an OR group with one entry per
// target row.
//
// With a single key column each element may be a scalar or a map carrying that
// column, and yields "column = value". With a composite key each element must be
// a map with a value for every key column, and yields a nested AND group with
// the columns in key order. The result is a group even for one element.
func ExpandIDs(keyColumns []string, ids []any) (*Group, error) {
	if err := validateKeyColumns(keyColumns); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, malformed(-1, "", "no identifiers given")
	}

	group := &Group{Combinator: Or, Children: make([]Node, 0, len(ids))}
	for i, id := range ids {
		values, err := keyValues(keyColumns, i, id)
		if err != nil {
			return nil, err
		}
		if len(keyColumns) == 1 {
			group.Children = append(group.Children, Eq(keyColumns[0], values[0]))
			continue
		}
		tuple := &Group{Combinator: And, Children: make([]Node, len(keyColumns))}
		for j, column := range keyColumns {
			tuple.Children[j] = Eq(column, values[j])
		}
		group.Children = append(group.Children, tuple)
	}
	return group, nil
}

func validateKeyColumns(keyColumns []string) error {
	if len(keyColumns) == 0 {
		return malformed(-1, "", "no primary key columns")
	}
	seen := make(map[string]struct{}, len(keyColumns))
	for _, column := range keyColumns {
		if !ValidColumn(column) {
			return malformed(-1, column, "invalid key column name")
		}
		if _, dup := seen[column]; dup {
			return malformed(-1, column, "duplicate key column")
		}
		seen[column] = struct{}{}
	}
	return nil
}

// keyValues extracts one value per key column from a single identifier element.
func keyValues(keyColumns []string, index int, id any) ([]any, error) {
	if id == nil {
		return nil, malformed(index, "", "identifier is nil")
	}

	tuple, isMap, err := asStringMap(index, id)
	if err != nil {
		return nil, err
	}

	if !isMap {
		if len(keyColumns) > 1 {
			return nil, malformed(index, "", "composite key (%s) requires a column to value mapping, got %T",
				strings.Join(keyColumns, ", "), id)
		}
		if !isScalar(id) {
			return nil, malformed(index, keyColumns[0], "unsupported identifier type %T", id)
		}
		if nonFinite(id) {
			return nil, malformed(index, keyColumns[0], "identifier is not a finite number")
		}
		return []any{id}, nil
	}

	values := make([]any, len(keyColumns))
	for j, column := range keyColumns {
		value, ok := tuple[column]
		if !ok {
			return nil, malformed(index, column, "missing value for key column")
		}
		if value == nil {
			return nil, malformed(index, column, "value is nil")
		}
		if !isScalar(value) {
			return nil, malformed(index, column, "unsupported identifier type %T", value)
		}
		if nonFinite(value) {
			return nil, malformed(index, column, "value is not a finite number")
		}
		values[j] = value
	}
	if len(tuple) > len(keyColumns) {
		extra := make([]string, 0, len(tuple)-len(keyColumns))
		for column := range tuple {
			if !containsString(keyColumns, column) {
				extra = append(extra, column)
			}
		}
		sort.Strings(extra)
		return nil, malformed(index, extra[0], "not a key column")
	}
	return values, nil
}

// asStringMap converts map[string]T values into map[string]any.
func asStringMap(index int, id any) (map[string]any, bool, error) {
	if m, ok := id.(map[string]any); ok {
		return m, true, nil
	}
	rv := reflect.ValueOf(id)
	if rv.Kind() != reflect.Map {
		return nil, false, nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return nil, false, malformed(index, "", "identifier map must be keyed by column name, got %T", id)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
