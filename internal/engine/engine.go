// Package engine provides the capability-negotiated facade over the two
// file engine variants. Planners never touch the file layer directly; they
// negotiate what a variant can do and degrade or fail fast accordingly.
package engine

import (
	"context"
	"fmt"

	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/pkg/types"
)

// Capability is one engine feature flag.
type Capability uint32

const (
	// CapDictionaryPreserving keeps dictionary encoding visible on read.
	CapDictionaryPreserving Capability = 1 << iota

	// CapInt96Write can produce legacy 12-byte timestamps.
	CapInt96Write

	// CapDrillPartitioning understands positional partition directories.
	CapDrillPartitioning

	// CapHivePartitioning understands column=value partition directories.
	CapHivePartitioning

	// CapPerColumnCompression honors per-column compression overrides.
	CapPerColumnCompression

	// CapRowGroupStatistics records min/max statistics per chunk.
	CapRowGroupStatistics
)

// Capabilities is a capability set.
type Capabilities uint32

// Has reports whether the set contains the capability.
func (c Capabilities) Has(cap Capability) bool { return uint32(c)&uint32(cap) != 0 }

// Engine is one closed variant of the file facade.
type Engine interface {
	// Name identifies the variant ("legacy" or "columnar").
	Name() string

	// Capabilities returns the variant's feature set.
	Capabilities() Capabilities

	// WriteFile encodes table fragments into one data file image. The
	// schema is the on-disk schema after negotiation.
	WriteFile(ctx context.Context, schema *types.Schema, fragments []*types.Table, opts file.WriterOptions) ([]byte, error)

	// ReadRowGroup decodes the requested columns of one row group.
	// Columns named in categories stay dictionary-encoded when the
	// variant can preserve dictionaries.
	ReadRowGroup(ctx context.Context, data []byte, rowGroup int, columns, categories []string) (*types.Table, error)
}

// ForName resolves an engine variant by name; empty means the default
// legacy variant.
func ForName(name string) (Engine, error) {
	switch name {
	case "", NameLegacy:
		return legacyEngine{}, nil
	case NameColumnar:
		return columnarEngine{}, nil
	}
	return nil, daskerrors.New(daskerrors.ErrCategoryPlan, daskerrors.CodeEngineUnsupported,
		fmt.Sprintf("unknown engine %q", name))
}

// NegotiateSchema adapts the requested on-disk schema to the engine's
// capabilities: an int96 timestamp request degrades to nanoseconds when the
// variant cannot write the legacy layout.
func NegotiateSchema(e Engine, schema *types.Schema) *types.Schema {
	out := schema.Clone()
	for i := range out.Columns {
		if out.Columns[i].Type == types.Timestamp &&
			out.Columns[i].TimeUnit == types.UnitInt96 &&
			!e.Capabilities().Has(CapInt96Write) {
			out.Columns[i].TimeUnit = types.UnitNS
		}
	}
	return out
}

// CheckReadable fails fast when the reading engine cannot parse the layout
// a dataset was written with. Flat datasets interoperate; directory
// partitioned output is only guaranteed readable by the variant that
// wrote it.
func CheckReadable(reader Engine, writerName, partitionScheme string) error {
	if partitionScheme == "" || writerName == "" || writerName == reader.Name() {
		return nil
	}
	return daskerrors.NewNotImplemented(fmt.Sprintf(
		"%s-partitioned output written by engine %q is not readable with engine %q",
		partitionScheme, writerName, reader.Name()))
}
