package app

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gekko3d/metaballs/metaballrt/rt/core"
)

// Profiler keeps the last duration of each named CPU scope plus a set of
// integer counters for the overlay/log line.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

// EndScope is a no-op for a scope that was never begun.
func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	p.Scopes[name] = p.now().Sub(start)
	delete(p.StartTimes, name)
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// RecordFrame publishes the last packed frame and the packer's skip totals.
// Skip reasons that never fired stay out of the stats block.
func (p *Profiler) RecordFrame(res core.FrameResult, stats core.PackerStats) {
	p.Counts["Packed"] = res.Packed
	p.Counts["Dropped"] = res.Dropped
	p.Counts["Sources"] = len(res.SourceCounts)
	p.Counts["Stale"] = res.StaleSources
	for r := core.SkipEmpty; r <= core.SkipClosed; r++ {
		if n := stats.Skipped(r); n > 0 {
			p.Counts["Skip "+r.String()] = int(n)
		}
	}
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", name, ms)
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.Counts[k])
	}
	return sb.String()
}
