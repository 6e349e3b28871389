package clock

import "sync"

// Switchable is a proxy controller that delegates every call to an inner
// Controller and supports hot-swapping that inner controller at runtime.
// Swap seeds the replacement with the current state before installing it,
// so frame/total continuity is preserved across the switch (spec §4.7
// "Switchable").
type Switchable struct {
	mu    sync.Mutex
	inner Controller
}

// NewSwitchable wraps inner as the initial delegate.
func NewSwitchable(inner Controller) *Switchable {
	return &Switchable{inner: inner}
}

func (c *Switchable) current() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner
}

// Update delegates to the current inner controller.
func (c *Switchable) Update() GlobalTime { return c.current().Update() }

// GetCurrentState delegates to the current inner controller.
func (c *Switchable) GetCurrentState() GlobalTime { return c.current().GetCurrentState() }

// SeedState delegates to the current inner controller.
func (c *Switchable) SeedState(s GlobalTime) { c.current().SeedState(s) }

// SetTimeScale delegates to the current inner controller.
func (c *Switchable) SetTimeScale(scale float64) { c.current().SetTimeScale(scale) }

// GetMode reports the current inner controller's mode (not a dedicated
// "Switchable" mode), since callers care which variant is actually driving
// time right now.
func (c *Switchable) GetMode() Mode { return c.current().GetMode() }

// Swap seeds next with the outgoing controller's current state, then
// installs it as the new delegate. Subsequent Update calls run against
// next.
func (c *Switchable) Swap(next Controller) {
	cur := c.current().GetCurrentState()
	next.SeedState(cur)
	c.mu.Lock()
	c.inner = next
	c.mu.Unlock()
}
