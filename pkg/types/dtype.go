// Package types provides the core value types shared across the dataset
// reader/writer: schemas, typed columns, partitioned tables and divisions.
package types

import "fmt"

// DType identifies the primitive type of a column.
type DType string

const (
	Int32       DType = "int32"
	Int64       DType = "int64"
	Float64     DType = "float64"
	Bool        DType = "bool"
	String      DType = "utf8"
	Bytes       DType = "bytes"
	Timestamp   DType = "timestamp"
	Categorical DType = "categorical"
)

// TimeUnit is the precision a timestamp column is stored with.
type TimeUnit string

const (
	// UnitNS is the default storage precision (nanoseconds since epoch).
	UnitNS TimeUnit = "ns"
	UnitUS TimeUnit = "us"
	UnitMS TimeUnit = "ms"

	// UnitInt96 is the legacy 12-byte timestamp layout. Only engines with
	// the Int96Write capability may produce it.
	UnitInt96 TimeUnit = "int96"
)

// Valid reports whether the DType is a known primitive type.
func (d DType) Valid() bool {
	switch d {
	case Int32, Int64, Float64, Bool, String, Bytes, Timestamp, Categorical:
		return true
	}
	return false
}

// FixedWidth returns the encoded width in bytes for fixed-width types,
// or 0 for variable-width types.
func (d DType) FixedWidth() int {
	switch d {
	case Int32:
		return 4
	case Int64, Float64, Timestamp:
		return 8
	case Bool:
		return 1
	}
	return 0
}

// Ordered reports whether values of this type carry a total ordering usable
// for min/max statistics. Raw bytes are ordered bytewise, which is only a
// partial proxy for any decoded ordering, so pruning treats them as ordered
// while readers must not assume exactness.
func (d DType) Ordered() bool {
	switch d {
	case Int32, Int64, Float64, String, Bytes, Timestamp:
		return true
	}
	return false
}

func (d DType) String() string { return string(d) }

// ParseDType converts a string into a DType, failing on unknown names.
func ParseDType(s string) (DType, error) {
	d := DType(s)
	if !d.Valid() {
		return "", fmt.Errorf("types: unknown dtype %q", s)
	}
	return d, nil
}
