package metaballs

import (
	"time"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

// DtSeconds is the last frame delta, falling back to 1/60 s on the first frame.
func (t *Time) DtSeconds() float32 {
	if t.Dt <= 0 {
		return 1.0 / 60.0
	}
	return float32(t.Dt.Seconds())
}

// TimeModule advances Time at the start of every frame. A non-zero FixedDt
// replaces wall-clock deltas, which keeps headless runs reproducible.
type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{Time: time.Now()})
	if mod.FixedDt > 0 {
		fixed := mod.FixedDt
		cmd.UseSystem(System(func(t *Time) {
			t.Dt = fixed
			t.Time = t.Time.Add(fixed)
		}).InStage(Prelude))
		return
	}
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(t *Time) {
	now := time.Now()
	t.Dt = now.Sub(t.Time)
	t.Time = now
}
