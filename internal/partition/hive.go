// Package partition implements directory-based partitioning schemes: the
// hive-style `column=value` layout and the drill-style positional layout.
// Partition column values live in the directory path, not in the row data,
// and are reconstructed from the path on read.
package partition

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/pkg/types"
)

// Scheme names a directory partitioning layout.
type Scheme string

const (
	// SchemeHive encodes each segment as column=value.
	SchemeHive Scheme = "hive"

	// SchemeDrill encodes bare value segments; on read they surface as
	// synthesized dir0..dirN columns.
	SchemeDrill Scheme = "drill"
)

// PathValue is one partition column's value for a single leaf directory.
type PathValue struct {
	Column string
	Value  string
}

// BuildPath renders the nested directory path for one value tuple.
func BuildPath(scheme Scheme, values []PathValue) string {
	segments := make([]string, len(values))
	for i, v := range values {
		switch scheme {
		case SchemeDrill:
			segments[i] = escapeSegment(v.Value)
		default:
			segments[i] = escapeSegment(v.Column) + "=" + escapeSegment(v.Value)
		}
	}
	return strings.Join(segments, "/")
}

// ParsePath extracts partition values from the directory part of a data
// file path relative to the dataset root. Hive segments must parse as
// column=value; under the drill scheme each segment becomes dir<i>.
func ParsePath(scheme Scheme, relPath string) ([]PathValue, error) {
	dir := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		dir = relPath[:i]
	} else {
		return nil, nil
	}
	var out []PathValue
	for i, seg := range strings.Split(dir, "/") {
		if seg == "" {
			continue
		}
		switch scheme {
		case SchemeDrill:
			val, err := unescapeSegment(seg)
			if err != nil {
				return nil, err
			}
			out = append(out, PathValue{Column: fmt.Sprintf("dir%d", i), Value: val})
		default:
			eq := strings.Index(seg, "=")
			if eq <= 0 {
				return nil, fmt.Errorf("partition: segment %q is not column=value", seg)
			}
			col, err := unescapeSegment(seg[:eq])
			if err != nil {
				return nil, err
			}
			val, err := unescapeSegment(seg[eq+1:])
			if err != nil {
				return nil, err
			}
			out = append(out, PathValue{Column: col, Value: val})
		}
	}
	return out, nil
}

// CheckCollisions fails when a partition column reconstructed from the path
// already exists in the on-disk schema.
func CheckCollisions(schema *types.Schema, values []PathValue) error {
	for _, v := range values {
		if _, ok := schema.Lookup(v.Column); ok {
			return errors.New(errors.ErrCategoryValidation, errors.CodePartitionColumnClash,
				fmt.Sprintf("partition column %q collides with a stored column", v.Column))
		}
	}
	return nil
}

// AttachColumns appends the partition values to a decoded fragment as
// constant string columns, one row per existing row.
func AttachColumns(t *types.Table, values []PathValue) *types.Table {
	n := t.NumRows()
	out := &types.Table{Index: t.Index, Columns: append([]types.Column(nil), t.Columns...)}
	for _, v := range values {
		data := make([]string, n)
		for i := range data {
			data[i] = v.Value
		}
		out.Columns = append(out.Columns, types.NewStringColumn(v.Column, data))
	}
	return out
}

func escapeSegment(s string) string {
	return url.PathEscape(s)
}

func unescapeSegment(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("partition: bad path segment %q: %w", s, err)
	}
	return out, nil
}
