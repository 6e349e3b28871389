package clock

import "time"

// RealTime measures wall-clock deltas between successive Update calls,
// scales them by time_scale, and accumulates totals — grounded on the
// wall-clock tick-rate idiom in the corpus's adamant server world ticker
// (time.Now/Sub deltas, scaled accumulation) rather than a fixed-step
// scheduler library, since nothing in the pack reaches for a third-party
// scheduler for this concern.
type RealTime struct {
	baseState
	lastWall time.Time
	started  bool
}

// NewRealTime returns a RealTime controller with time_scale 1.
func NewRealTime() *RealTime {
	return &RealTime{baseState: newBaseState()}
}

// Update measures the wall-clock delta since the previous Update, scales it
// by time_scale, advances frame_number, and returns the resulting state.
func (c *RealTime) Update() GlobalTime {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.started {
		c.lastWall = now
		c.started = true
	}
	unscaled := now.Sub(c.lastWall).Seconds()
	c.lastWall = now

	scaled := unscaled * c.state.TimeScale
	c.state.Frame++
	c.state.Delta = scaled
	c.state.Total += scaled
	c.state.UnscaledDelta = unscaled
	c.state.UnscaledTotal += unscaled
	return c.state
}

func (c *RealTime) GetMode() Mode { return ModeRealTime }
