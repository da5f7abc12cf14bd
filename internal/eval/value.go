package eval

import (
	"database/sql/driver"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// normalizeValue unwraps driver.Valuer and pointer values and turns byte
// slices into strings, so that comparisons only see a small set of types:
// nil, bool, string, decimal.Decimal and time.Time.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case *decimal.Decimal:
		if val == nil {
			return nil, nil
		}
		return *val, nil
	case decimal.NullDecimal:
		if !val.Valid {
			return nil, nil
		}
		return val.Decimal, nil
	}
	if valuer, ok := v.(driver.Valuer); ok {
		inner, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, nil
		}
		v = inner
	}

	switch val := v.(type) {
	case bool, string, time.Time:
		return val, nil
	case []byte:
		return string(val), nil
	case *big.Int:
		if val == nil {
			return nil, nil
		}
		return decimal.NewFromBigInt(val, 0), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int8:
		return decimal.NewFromInt(int64(val)), nil
	case int16:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case uint:
		return fromUint64(uint64(val)), nil
	case uint8:
		return decimal.NewFromInt(int64(val)), nil
	case uint16:
		return decimal.NewFromInt(int64(val)), nil
	case uint32:
		return decimal.NewFromInt(int64(val)), nil
	case uint64:
		return fromUint64(val), nil
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, nonFinite(float64(val))
		}
		return decimal.NewFromFloat32(val), nil
	case float64:
		return fromFloat(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	}
	return nil, fmt.Errorf("eval: unsupported value type %T", v)
}

// compareValues orders two normalized, non-nil values. comparable is false
// when the types cannot be ordered against each other.
func compareValues(a, b any) (cmp int, comparable bool) {
	// Booleans compare as 0/1 against numbers, as sqlite and mysql store them.
	if ab, ok := a.(bool); ok {
		if _, isNum := b.(decimal.Decimal); isNum {
			a = boolDecimal(ab)
		}
	}
	if bb, ok := b.(bool); ok {
		if _, isNum := a.(decimal.Decimal); isNum {
			b = boolDecimal(bb)
		}
	}

	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		if !ok {
			return 0, false
		}
		return av.Cmp(bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func fromFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nonFinite(f)
	}
	return decimal.NewFromFloat(f), nil
}

func nonFinite(f float64) error {
	return fmt.Errorf("eval: cannot compare non-finite number %v", f)
}

func fromUint64(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func boolDecimal(b bool) decimal.Decimal {
	if b {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// truthy converts a normalized value used as a condition into a truth value.
func truthy(v any) (truth, error) {
	switch val := v.(type) {
	case nil:
		return unknown, nil
	case bool:
		return fromBool(val), nil
	case decimal.Decimal:
		return fromBool(!val.IsZero()), nil
	}
	return unknown, fmt.Errorf("eval: %T value used as a condition", v)
}

// truth is SQL three-valued logic.
type truth int

const (
	unknown truth = iota
	falsy
	truish
)

func fromBool(b bool) truth {
	if b {
		return truish
	}
	return falsy
}

func (t truth) not() truth {
	switch t {
	case truish:
		return falsy
	case falsy:
		return truish
	}
	return unknown
}

func (t truth) value() any {
	if t == unknown {
		return nil
	}
	return t == truish
}

func and(a, b truth) truth {
	if a == falsy || b == falsy {
		return falsy
	}
	if a == unknown || b == unknown {
		return unknown
	}
	return truish
}

func or(a, b truth) truth {
	if a == truish || b == truish {
		return truish
	}
	if a == unknown || b == unknown {
		return unknown
	}
	return falsy
}
