package planner

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

// fingerprintRead hashes the canonical form of a read request. Two
// requests naming the same location, columns, index, categories and
// filters hash identically, so their task keys coincide and a task graph
// can deduplicate the work.
func fingerprintRead(location string, cfg ReadConfig) string {
	var b strings.Builder
	b.WriteString("read|")
	b.WriteString(location)
	// nil and empty are different requests: nil selects everything (or
	// auto-detects), an empty list selects nothing.
	b.WriteString("|cols=")
	if cfg.Columns == nil {
		b.WriteString("<all>")
	} else {
		b.WriteString(strings.Join(cfg.Columns, ","))
	}
	b.WriteString("|index=")
	if cfg.NoIndex {
		b.WriteString("<none>")
	} else {
		b.WriteString(cfg.Index)
	}
	b.WriteString("|cats=")
	if cfg.Categories == nil {
		b.WriteString("<auto>")
	} else {
		b.WriteString(strings.Join(cfg.Categories, ","))
	}
	b.WriteString("|engine=")
	b.WriteString(cfg.Engine)
	b.WriteString("|filters=")
	for i, f := range cfg.Filters {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s%s%v", f.Column, f.Op, f.Value)
	}
	h1, h2 := murmur3.Sum128([]byte(b.String()))
	return fmt.Sprintf("%016x%016x", h1, h2)
}
