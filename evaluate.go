package condbuilder

import (
	"fmt"
	"reflect"

	"github.com/nlstn/go-condbuilder/internal/eval"
	"github.com/nlstn/go-condbuilder/internal/metadata"
)

// Match reports whether row satisfies t, using SQL semantics: comparisons
// with NULL never match and numbers compare by value whatever their Go type.
func Match(t *Tree, row map[string]interface{}) (bool, error) {
	return eval.Match(t, row)
}

// Filter returns the rows matched by t in their original order.
func Filter(t *Tree, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	return eval.Filter(t, rows)
}

// FilterEntities returns the entities of a slice matched by t. Each entity
// is evaluated as the column map gorm would persist.
func FilterEntities(t *Tree, entities interface{}) ([]interface{}, error) {
	meta, err := metadata.AnalyzeEntity(entities)
	if err != nil {
		return nil, fmt.Errorf("condbuilder: %w", err)
	}
	rv := reflect.ValueOf(entities)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("condbuilder: expected a slice of entities, got %T", entities)
	}

	var out []interface{}
	for i := 0; i < rv.Len(); i++ {
		entity := rv.Index(i).Interface()
		row, err := meta.Row(entity)
		if err != nil {
			return nil, fmt.Errorf("condbuilder: entity %d: %w", i, err)
		}
		ok, err := eval.Match(t, row)
		if err != nil {
			return nil, fmt.Errorf("condbuilder: entity %d: %w", i, err)
		}
		if ok {
			out = append(out, entity)
		}
	}
	return out, nil
}
