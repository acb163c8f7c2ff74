// Package main implements the dask-compact tool. It rewrites a dataset
// into fewer, larger data files: the whole input is read through the
// normal plan/execute path and written to a fresh destination, which
// replaces many small append-era files with a compact layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sheppard/dask"
	"github.com/sheppard/dask/pkg/types"
)

// Config holds the tool configuration.
type Config struct {
	ConfigFile  string
	Location    string
	Dest        string
	NPartitions int
	Compression string
	PartitionOn string
}

func main() {
	cfg := parseFlags()

	ctx := context.Background()
	client, err := dask.NewClient(ctx, cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to initialize client: %v", err)
	}

	start := time.Now()
	frame, err := client.Read(ctx, cfg.Location, dask.ReadOptions{})
	if err != nil {
		log.Fatalf("Failed to plan read of %q: %v", cfg.Location, err)
	}
	log.Printf("Compacting %d partitions from %s", frame.NPartitions(), cfg.Location)

	tab, err := frame.Compute(ctx)
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}

	parts := cfg.NPartitions
	if parts <= 0 {
		parts = 1
	}
	pt, err := types.FromTable(tab, parts)
	if err != nil {
		log.Fatalf("Failed to repartition: %v", err)
	}

	opts := dask.DefaultWriteOptions()
	opts.Compression = cfg.Compression
	if tab.Index == "" {
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
		log.Fatalf("Failed to write compacted dataset: %v", err)
	}
	log.Printf("Wrote %d data files (%d rows) to %s (%s)",
		handle.NumTasks(), tab.NumRows(), cfg.Dest, time.Since(start).Round(time.Millisecond))
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML/JSON configuration file")
	flag.StringVar(&cfg.Location, "location", "", "Source dataset root, glob, or _metadata path")
	flag.StringVar(&cfg.Dest, "dest", "", "Destination dataset root")
	flag.IntVar(&cfg.NPartitions, "npartitions", 1, "Number of output partitions")
	flag.StringVar(&cfg.Compression, "compression", "", "Chunk compression for the rewrite (default: configured)")
	flag.StringVar(&cfg.PartitionOn, "partition-on", "", "Comma-separated columns to fan out into directories")
	flag.Parse()

	if cfg.Location == "" || cfg.Dest == "" {
		fmt.Fprintln(os.Stderr, "usage: dask-compact [-config file] [-npartitions n] -location <src> -dest <dst>")
		os.Exit(2)
	}
	return cfg
}
