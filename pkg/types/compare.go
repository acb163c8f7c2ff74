package types

import (
	"bytes"
	"fmt"
)

// Compare orders two scalar values of the same kind: -1, 0 or +1.
// Integer widths are unified before comparing. Byte slices compare
// bytewise, which for raw-bytes columns is a storage ordering only.
func Compare(a, b any) (int, error) {
	switch av := a.(type) {
	case int32:
		return Compare(int64(av), b)
	case int64:
		switch bv := b.(type) {
		case int32:
			return compareOrdered(av, int64(bv)), nil
		case int64:
			return compareOrdered(av, bv), nil
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return compareOrdered(av, bv), nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareOrdered(av, bv), nil
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0, nil
			}
			if !av {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, fmt.Errorf("types: cannot compare %T with %T", a, b)
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MinMax tracks running extremes over comparable values, mirroring the
// per-column statistics trackers used at encode time.
type MinMax struct {
	Min any
	Max any
}

// Update folds a value into the running extremes. Nil values are ignored.
func (m *MinMax) Update(v any) error {
	if v == nil {
		return nil
	}
	if m.Min == nil {
		m.Min, m.Max = v, v
		return nil
	}
	if cmp, err := Compare(v, m.Min); err != nil {
		return err
	} else if cmp < 0 {
		m.Min = v
	}
	if cmp, err := Compare(v, m.Max); err != nil {
		return err
	} else if cmp > 0 {
		m.Max = v
	}
	return nil
}
