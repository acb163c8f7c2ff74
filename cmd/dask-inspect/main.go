// Package main implements the dask-inspect tool. It discovers a dataset's
// metadata and prints its schema, file layout, divisions and per-row-group
// statistics without reading any data pages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sheppard/dask/internal/config"
	"github.com/sheppard/dask/internal/dataset"
)

// Config holds the tool configuration.
type Config struct {
	ConfigFile string
	Location   string
	ShowStats  bool
	Verify     bool
}

func main() {
	cfg := parseFlags()

	conf, err := config.Load(cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	store, err := conf.OpenStore(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	m, root, err := dataset.Discover(ctx, store, cfg.Location)
	if err != nil {
		log.Fatalf("Failed to discover dataset at %q: %v", cfg.Location, err)
	}

	fmt.Printf("dataset: %s\n", displayRoot(root))
	fmt.Printf("files: %d  rows: %d\n", len(m.Files), m.NumRows())
	if m.PartitionScheme != "" {
		fmt.Printf("partitioning: %s on %v\n", m.PartitionScheme, m.PartitionColumns)
	}

	fmt.Println("schema:")
	for _, def := range m.Schema.Columns {
		marker := ""
		if def.Name == m.Schema.Index {
			marker = "  (index)"
		}
		unit := ""
		if def.TimeUnit != "" {
			unit = fmt.Sprintf("[%s]", def.TimeUnit)
		}
		fmt.Printf("  %-24s %s%s%s\n", def.Name, def.Type, unit, marker)
	}

	if m.Schema.Index != "" {
		if divs := m.Divisions(m.Schema.Index); divs != nil {
			fmt.Printf("divisions: %v\n", divs)
		} else {
			fmt.Println("divisions: unknown")
		}
	}

	fmt.Println("files:")
	for _, entry := range m.Files {
		fmt.Printf("  %s  rows=%d  row_groups=%d  engine=%s\n",
			entry.Path, entry.Footer.NumRows, len(entry.Footer.RowGroups), entry.Footer.Engine)
		if !cfg.ShowStats {
			continue
		}
		for gi, group := range entry.Footer.RowGroups {
			fmt.Printf("    row group %d (%d rows)\n", gi, group.NumRows)
			for _, chunk := range group.Chunks {
				fmt.Printf("      %-22s min=%v max=%v nulls=%d\n",
					chunk.Column, chunk.Stats.Min, chunk.Stats.Max, chunk.Stats.NullCount)
			}
		}
	}

	if cfg.Verify {
		result, err := dataset.Verify(ctx, store, cfg.Location)
		if err != nil {
			log.Fatalf("Failed to verify dataset: %v", err)
		}
		if result.Valid {
			fmt.Printf("verify: ok (%d files, %d rows)\n", result.Files, result.Rows)
		} else {
			fmt.Println("verify: FAILED")
			for _, e := range result.Errors {
				fmt.Printf("  %s\n", e)
			}
			os.Exit(1)
		}
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML/JSON configuration file")
	flag.StringVar(&cfg.Location, "location", "", "Dataset root, glob, or _metadata path")
	flag.BoolVar(&cfg.ShowStats, "stats", false, "Print per-row-group chunk statistics")
	flag.BoolVar(&cfg.Verify, "verify", false, "Re-read every footer and check it against the committed index")
	flag.Parse()

	if cfg.Location == "" && flag.NArg() > 0 {
		cfg.Location = flag.Arg(0)
	}
	if cfg.Location == "" {
		fmt.Fprintln(os.Stderr, "usage: dask-inspect [-config file] [-stats] [-verify] <location>")
		os.Exit(2)
	}
	return cfg
}

func displayRoot(root string) string {
	if root == "" {
		return "."
	}
	return root
}
