// Package observability tracks read-plan statistics: which columns are
// selected and filtered on, and how effective row-group pruning is. The
// numbers feed catalog and sort-order decisions.
package observability

import (
	"sort"
	"sync"
	"time"
)

// ColumnStats holds access statistics for one column.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Operators map[string]int // operator → count for filter columns
}

// ReadStats tracks column selection and predicate frequency across read
// plans within a sliding window.
type ReadStats struct {
	mu        sync.RWMutex
	filters   map[string]*ColumnStats
	selection map[string]*ColumnStats
	window    time.Duration

	plansPlanned int64
	tasksPlanned int64
	tasksPruned  int64
}

// NewReadStats creates a tracker. window bounds how long an idle column
// stays in the report.
func NewReadStats(window time.Duration) *ReadStats {
	return &ReadStats{
		filters:   make(map[string]*ColumnStats),
		selection: make(map[string]*ColumnStats),
		window:    window,
	}
}

// RecordFilter records one predicate on a column.
func (r *ReadStats) RecordFilter(column, operator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.filters[column]
	if !ok {
		stats = &ColumnStats{Column: column, Operators: make(map[string]int)}
		r.filters[column] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// RecordSelection records the columns a plan reads.
func (r *ReadStats) RecordSelection(columns []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, column := range columns {
		stats, ok := r.selection[column]
		if !ok {
			stats = &ColumnStats{Column: column, Operators: make(map[string]int)}
			r.selection[column] = stats
		}
		stats.Frequency++
		stats.LastSeen = now
	}
}

// RecordPlan records pruning effectiveness: how many row-group tasks the
// plan kept out of the candidates considered.
func (r *ReadStats) RecordPlan(candidates, kept int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plansPlanned++
	r.tasksPlanned += int64(kept)
	r.tasksPruned += int64(candidates - kept)
}

// PruneRatio returns the fraction of candidate row groups pruned away.
func (r *ReadStats) PruneRatio() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := r.tasksPlanned + r.tasksPruned
	if total == 0 {
		return 0
	}
	return float64(r.tasksPruned) / float64(total)
}

// Plans returns the number of read plans recorded.
func (r *ReadStats) Plans() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plansPlanned
}

// TopFilterColumns returns the n most filtered-on columns by frequency.
// These are the candidates for the pruning catalog and the sort key.
func (r *ReadStats) TopFilterColumns(n int) []ColumnStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return topN(r.filters, n)
}

// TopSelectedColumns returns the n most selected columns by frequency.
func (r *ReadStats) TopSelectedColumns(n int) []ColumnStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return topN(r.selection, n)
}

func topN(m map[string]*ColumnStats, n int) []ColumnStats {
	if n <= 0 || len(m) == 0 {
		return []ColumnStats{}
	}
	stats := make([]ColumnStats, 0, len(m))
	for _, s := range m {
		cp := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Operators: make(map[string]int, len(s.Operators)),
		}
		for op, count := range s.Operators {
			cp.Operators[op] = count
		}
		stats = append(stats, cp)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})
	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune drops columns idle for longer than the window.
func (r *ReadStats) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-r.window)
	for column, stats := range r.filters {
		if stats.LastSeen.Before(threshold) {
			delete(r.filters, column)
		}
	}
	for column, stats := range r.selection {
		if stats.LastSeen.Before(threshold) {
			delete(r.selection, column)
		}
	}
}
