// Package main implements the dask-import tool. It loads CSV input into
// a dataset: header row names the columns, dtypes come from flags or are
// inferred from the first data row.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sheppard/dask"
	"github.com/sheppard/dask/pkg/types"
)

// Config holds the tool configuration.
type Config struct {
	ConfigFile  string
	Input       string
	Dest        string
	Index       string
	PartitionOn string
	Dtypes      string
	NPartitions int
	Append      bool
}

func main() {
	cfg := parseFlags()

	in := os.Stdin
	if cfg.Input != "" && cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	start := time.Now()
	tab, err := loadCSV(in, cfg)
	if err != nil {
		log.Fatalf("Failed to load CSV: %v", err)
	}
	log.Printf("Loaded %d rows, %d columns", tab.NumRows(), len(tab.Columns))

	pt, err := types.FromTable(tab, cfg.NPartitions)
	if err != nil {
		log.Fatalf("Failed to partition input: %v", err)
	}

	ctx := context.Background()
	client, err := dask.NewClient(ctx, cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to initialize client: %v", err)
	}

	opts := dask.DefaultWriteOptions()
	opts.Append = cfg.Append
	if cfg.Index == "" {
		opts.WriteIndex = false
	}
	if cfg.PartitionOn != "" {
		opts.PartitionOn = strings.Split(cfg.PartitionOn, ",")
	}
	handle, err := client.Write(ctx, pt, cfg.Dest, opts)
	if err != nil {
		log.Fatalf("Failed to plan write: %v", err)
	}
	if err := handle.Compute(ctx); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}
	log.Printf("Wrote %d data files to %s (%s)",
		handle.NumTasks(), cfg.Dest, time.Since(start).Round(time.Millisecond))
}

// loadCSV reads the whole input into one table.
func loadCSV(r io.Reader, cfg Config) (*types.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := append([]string(nil), header...)

	declared, err := parseDtypes(cfg.Dtypes)
	if err != nil {
		return nil, err
	}

	var builder *types.TableBuilder
	var schema *types.Schema
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+2, err)
		}
		if builder == nil {
			schema, err = buildSchema(names, record, declared, cfg.Index)
			if err != nil {
				return nil, err
			}
			builder, err = types.NewTableBuilder(schema)
			if err != nil {
				return nil, err
			}
		}
		values := make([]any, len(record))
		for i, cell := range record {
			v, err := parseCell(cell, schema.Columns[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", row+2, names[i], err)
			}
			values[i] = v
		}
		if err := builder.AppendRow(values); err != nil {
			return nil, fmt.Errorf("row %d: %w", row+2, err)
		}
		row++
	}
	if builder == nil {
		return nil, fmt.Errorf("input has no data rows")
	}
	return builder.Build()
}

// parseDtypes parses the -dtypes flag: "col:int64,col2:string".
func parseDtypes(s string) (map[string]types.DType, error) {
	out := make(map[string]types.DType)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, dtype, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("dtype %q is not column:type", pair)
		}
		switch dtype {
		case "int64":
			out[name] = types.Int64
		case "float64":
			out[name] = types.Float64
		case "bool":
			out[name] = types.Bool
		case "string":
			out[name] = types.String
		case "category":
			out[name] = types.Categorical
		case "timestamp":
			out[name] = types.Timestamp
		default:
			return nil, fmt.Errorf("unsupported dtype %q for column %q", dtype, name)
		}
	}
	return out, nil
}

// buildSchema assigns each column a dtype: declared ones win, the rest
// infer from the first data row.
func buildSchema(names, first []string, declared map[string]types.DType, index string) (*types.Schema, error) {
	if len(first) != len(names) {
		return nil, fmt.Errorf("first data row has %d cells, header has %d", len(first), len(names))
	}
	schema := &types.Schema{}
	indexFound := index == ""
	for i, name := range names {
		dtype, ok := declared[name]
		if !ok {
			dtype = inferDType(first[i])
		}
		def := types.ColumnDef{Name: name, Type: dtype, Nullable: true}
		if dtype == types.Categorical {
			def.Categorical = true
		}
		if dtype == types.Timestamp {
			def.TimeUnit = types.UnitNS
		}
		if name == index {
			def.Nullable = false
			indexFound = true
		}
		schema.Columns = append(schema.Columns, def)
	}
	if !indexFound {
		return nil, fmt.Errorf("index column %q not in header", index)
	}
	schema.Index = index
	return schema, schema.Validate()
}

func inferDType(cell string) types.DType {
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return types.Int64
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return types.Float64
	}
	if _, err := strconv.ParseBool(cell); err == nil {
		return types.Bool
	}
	return types.String
}

// parseCell converts one CSV cell to the column's value domain. An empty
// cell in a nullable non-string column is a null.
func parseCell(cell string, def types.ColumnDef) (any, error) {
	switch def.Type {
	case types.String, types.Categorical:
		return cell, nil
	}
	if cell == "" {
		return nil, nil
	}
	switch def.Type {
	case types.Int64, types.Timestamp:
		return strconv.ParseInt(cell, 10, 64)
	case types.Float64:
		return strconv.ParseFloat(cell, 64)
	case types.Bool:
		return strconv.ParseBool(cell)
	}
	return nil, fmt.Errorf("unsupported dtype %s", def.Type)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML/JSON configuration file")
	flag.StringVar(&cfg.Input, "input", "", "CSV input path (default: stdin)")
	flag.StringVar(&cfg.Dest, "dest", "", "Destination dataset root")
	flag.StringVar(&cfg.Index, "index", "", "Sort-key column to materialize as the index")
	flag.StringVar(&cfg.PartitionOn, "partition-on", "", "Comma-separated columns to fan out into directories")
	flag.StringVar(&cfg.Dtypes, "dtypes", "", "Column dtype overrides, column:type pairs")
	flag.IntVar(&cfg.NPartitions, "npartitions", 1, "Number of output partitions")
	flag.BoolVar(&cfg.Append, "append", false, "Append to an existing dataset")
	flag.Parse()

	if cfg.Dest == "" {
		fmt.Fprintln(os.Stderr, "usage: dask-import [-config file] [-input csv] [-index col] [-dtypes col:type,...] -dest <location>")
		os.Exit(2)
	}
	if cfg.NPartitions < 1 {
		cfg.NPartitions = 1
	}
	return cfg
}
