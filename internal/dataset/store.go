package dataset

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

// Commit writes the aggregate index and then the schema-only summary into
// the dataset root. Callers invoke it only after every data file is
// durable, so a crash before Commit leaves the previous index intact.
func Commit(ctx context.Context, store storage.ObjectStore, root string, m *Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return daskerrors.NewInternalError("marshal dataset metadata", err)
	}
	if err := store.Put(ctx, path.Join(root, MetadataFile), data); err != nil {
		return daskerrors.NewStorageError(daskerrors.CodeWriteFailed, "write "+MetadataFile, err)
	}
	common, err := json.Marshal(m.Common())
	if err != nil {
		return daskerrors.NewInternalError("marshal common metadata", err)
	}
	if err := store.Put(ctx, path.Join(root, CommonMetadataFile), common); err != nil {
		return daskerrors.NewStorageError(daskerrors.CodeWriteFailed, "write "+CommonMetadataFile, err)
	}
	return nil
}

// LoadAggregate reads the aggregate `_metadata` index from a dataset root.
// Returns storage.ErrObjectNotFound when no index exists.
func LoadAggregate(ctx context.Context, store storage.ObjectStore, root string) (*Metadata, error) {
	data, err := store.Get(ctx, path.Join(root, MetadataFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, daskerrors.NewCorruptFile(path.Join(root, MetadataFile), err)
	}
	return &m, nil
}

// Discover resolves a location into a metadata snapshot. Preference order:
// an explicit `_metadata` path, a root directory containing one, then a
// glob/directory scan that synthesizes the index by reading every data
// file's own footer.
func Discover(ctx context.Context, store storage.ObjectStore, location string) (*Metadata, string, error) {
	location = strings.TrimSuffix(location, "/")

	if path.Base(location) == MetadataFile {
		root := path.Dir(location)
		if root == "." {
			root = ""
		}
		m, err := LoadAggregate(ctx, store, root)
		if err != nil {
			return nil, "", err
		}
		return m, root, nil
	}

	root, pattern := splitGlob(location)
	if pattern == "" {
		if m, err := LoadAggregate(ctx, store, root); err == nil {
			return m, root, nil
		} else if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", err
		}
	}

	paths, err := listDataFiles(ctx, store, root, pattern)
	if err != nil {
		return nil, "", err
	}
	if len(paths) == 0 {
		return nil, "", daskerrors.New(daskerrors.ErrCategoryMetadata, daskerrors.CodeNoDataFiles,
			fmt.Sprintf("no data files under %q", location))
	}

	entries := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		footer, err := ReadFooter(ctx, store, path.Join(root, p))
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, FileEntry{Path: p, Footer: footer})
	}
	scheme, cols := detectPartitioning(paths)
	m, err := Merge(entries, scheme, cols)
	if err != nil {
		return nil, "", err
	}
	return m, root, nil
}

// ReadFooter parses one data file's footer using ranged reads only.
func ReadFooter(ctx context.Context, store storage.ObjectStore, p string) (*file.Footer, error) {
	size, err := store.Size(ctx, p)
	if err != nil {
		return nil, err
	}
	if size < 12 {
		return nil, daskerrors.NewCorruptFile(p, fmt.Errorf("%d bytes", size))
	}
	tail, err := store.GetRange(ctx, p, size-8, 8)
	if err != nil {
		return nil, err
	}
	if string(tail[4:]) != file.Magic {
		return nil, daskerrors.NewCorruptFile(p, fmt.Errorf("bad trailing magic %q", tail[4:]))
	}
	footerLen := int64(binary.LittleEndian.Uint32(tail[:4]))
	if footerLen <= 0 || footerLen > size-8 {
		return nil, daskerrors.NewCorruptFile(p, fmt.Errorf("footer length %d", footerLen))
	}
	data, err := store.GetRange(ctx, p, size-8-footerLen, footerLen)
	if err != nil {
		return nil, err
	}
	footer, err := file.UnmarshalFooter(data)
	if err != nil {
		return nil, daskerrors.NewCorruptFile(p, err)
	}
	return footer, nil
}

// AppendOptions control append-time validation.
type AppendOptions struct {
	// WriteIndex mirrors the writer's write_index setting.
	WriteIndex bool

	// IgnoreDivisions skips the ordering check; the merged dataset's
	// divisions become unknown.
	IgnoreDivisions bool
}

// ValidateAppend checks an incoming schema and sort-key range against the
// committed dataset before any byte is written. On success it reports
// whether the merged dataset keeps known divisions.
func ValidateAppend(existing *Metadata, incoming *types.Schema, incomingDivisions []any, opts AppendOptions) (bool, error) {
	if existing.Schema.Index != "" && !opts.WriteIndex {
		// the physical column layouts differ, so this is a column mismatch
		return false, daskerrors.NewSchemaMismatch("Appended columns do not match")
	}
	if !existing.Schema.SameColumnSet(incoming) {
		return false, daskerrors.NewSchemaMismatch("Appended columns do not match")
	}
	if conflicts := existing.Schema.DTypeConflicts(incoming); len(conflicts) > 0 {
		return false, daskerrors.NewSchemaMismatch("Appended dtypes do not match")
	}

	existingDivs := existing.Divisions(existing.Schema.Index)
	if existingDivs == nil {
		return false, nil
	}
	if len(incomingDivisions) == 0 {
		// incoming ordering unproven: accept, but ordering is lost
		return false, nil
	}
	oldMax := existingDivs[len(existingDivs)-1]
	newMin := incomingDivisions[0]
	cmp, err := types.Compare(newMin, oldMax)
	if err != nil || cmp < 0 {
		if opts.IgnoreDivisions {
			return false, nil
		}
		return false, daskerrors.NewDivisionOverlap("Appended divisions overlap")
	}
	if opts.IgnoreDivisions {
		return false, nil
	}
	return true, nil
}

// splitGlob separates a location into a literal root prefix and a glob
// pattern. A location without metacharacters is all root.
func splitGlob(location string) (root, pattern string) {
	i := strings.IndexAny(location, "*?[")
	if i < 0 {
		return location, ""
	}
	slash := strings.LastIndex(location[:i], "/")
	if slash < 0 {
		return "", location
	}
	return location[:slash], location[slash+1:]
}

// listDataFiles returns data file paths under root, relative to it, in
// sorted order. Metadata sidecars and foreign files are skipped.
func listDataFiles(ctx context.Context, store storage.ObjectStore, root, pattern string) ([]string, error) {
	prefix := root
	if prefix != "" {
		prefix += "/"
	}
	all, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range all {
		rel := strings.TrimPrefix(p, prefix)
		base := path.Base(rel)
		if strings.HasPrefix(base, "_") || !strings.HasSuffix(base, DataFileSuffix) {
			continue
		}
		if pattern != "" {
			ok, err := path.Match(pattern, rel)
			if err != nil {
				return nil, fmt.Errorf("dataset: bad glob %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

// detectPartitioning infers the directory layout from data file paths:
// nested `column=value` segments mean hive partitioning, any other nesting
// is treated as drill-style positional partitioning.
func detectPartitioning(paths []string) (string, []string) {
	var cols []string
	hive := true
	nested := false
	for _, p := range paths {
		dir := path.Dir(p)
		if dir == "." {
			return "", nil // flat dataset
		}
		nested = true
		segs := strings.Split(dir, "/")
		var fileCols []string
		for _, seg := range segs {
			eq := strings.Index(seg, "=")
			if eq <= 0 {
				hive = false
				break
			}
			fileCols = append(fileCols, seg[:eq])
		}
		if cols == nil {
			cols = fileCols
		}
	}
	if !nested {
		return "", nil
	}
	if hive {
		return string(partition.SchemeHive), cols
	}
	depth := strings.Count(path.Dir(paths[0]), "/") + 1
	cols = make([]string, depth)
	for i := range cols {
		cols[i] = fmt.Sprintf("dir%d", i)
	}
	return string(partition.SchemeDrill), cols
}
