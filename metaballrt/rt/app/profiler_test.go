package app

import (
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestProfilerScopes(t *testing.T) {
	p := NewProfiler()
	p.now = fakeClock(2 * time.Millisecond)

	p.BeginScope("Pack")
	p.EndScope("Pack")
	p.BeginScope("Render")
	p.EndScope("Render")
	p.BeginScope("Pack")
	p.EndScope("Pack")

	assert.Equal(t, []string{"Pack", "Render"}, p.Order)
	assert.Equal(t, 2*time.Millisecond, p.Scopes["Pack"])
	assert.Empty(t, p.StartTimes)
}

func TestProfilerEndWithoutBegin(t *testing.T) {
	p := NewProfiler()
	p.EndScope("Nope")
	assert.Empty(t, p.Scopes)
}

func TestProfilerStatsString(t *testing.T) {
	p := NewProfiler()
	p.now = fakeClock(time.Millisecond)
	p.BeginScope("Render")
	p.EndScope("Render")
	p.SetCount("Packed", 42)
	p.SetCount("Dropped", 5)

	out := p.GetStatsString()
	require.Contains(t, out, "Render")
	assert.Contains(t, out, "1.00 ms")
	assert.Contains(t, out, "Dropped        : 5")
	assert.Less(t, strings.Index(out, "Dropped"), strings.Index(out, "Packed"))
}

func TestProfilerRecordFrame(t *testing.T) {
	p := NewProfiler()
	var stats core.PackerStats
	stats.FramesSkipped[core.SkipEmpty] = 3
	stats.FramesSkipped[core.SkipAllocation] = 1

	p.RecordFrame(core.FrameResult{
		Total:        12,
		Packed:       10,
		Dropped:      2,
		StaleSources: 1,
		SourceCounts: []int{4, 8},
	}, stats)

	assert.Equal(t, map[string]int{
		"Packed":          10,
		"Dropped":         2,
		"Sources":         2,
		"Stale":           1,
		"Skip empty":      3,
		"Skip allocation": 1,
	}, p.Counts)
	assert.Contains(t, p.GetStatsString(), "Skip allocation: 1")
}
