package clock

// Stepping is the fixed-step / stepped-master-driven TimeController
// variant (spec §4.7: "Fixed-step / stepping"). Update returns the state
// seeded by the last explicit Step(dt) call; Step advances by exactly
// dt * time_scale. Unlike RealTime it never reads the wall clock, so a
// test (or a stepped-master controller) drives it deterministically.
type Stepping struct {
	baseState
}

// NewStepping returns a Stepping controller with time_scale 1 and frame 0.
func NewStepping() *Stepping {
	return &Stepping{baseState: newBaseState()}
}

// Step advances the controller by exactly dt * time_scale, bumping
// frame_number by one.
func (c *Stepping) Step(dt float64) GlobalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	scaled := dt * c.state.TimeScale
	c.state.Frame++
	c.state.Delta = scaled
	c.state.Total += scaled
	c.state.UnscaledDelta = dt
	c.state.UnscaledTotal += dt
	return c.state
}

// Update returns the state produced by the most recent Step call, making
// no advancement of its own.
func (c *Stepping) Update() GlobalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Stepping) GetMode() Mode { return ModeFixedStep }
