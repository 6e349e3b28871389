package clock

import "github.com/TheBitDrifter/fdp/event"

// SteppedSlave waits for a FrameOrder published by a SteppedMaster,
// advances its local time to match, and publishes the corresponding
// FrameAck naming itself.
type SteppedSlave struct {
	baseState
	bus  *event.Bus
	node string
}

// NewSteppedSlave returns a slave clock identified as node on bus.
func NewSteppedSlave(bus *event.Bus, node string) *SteppedSlave {
	event.Register[FrameOrder](bus)
	event.Register[FrameAck](bus)
	return &SteppedSlave{baseState: newBaseState(), bus: bus, node: node}
}

// Update consumes every FrameOrder visible this tick, advances local time
// to the last one observed, and acks each in turn. With one master this is
// normally exactly one order per call.
func (c *SteppedSlave) Update() GlobalTime {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, order := range event.Consume[FrameOrder](c.bus) {
		scaled := order.Dt * c.state.TimeScale
		c.state.Frame = order.Frame
		c.state.Delta = scaled
		c.state.Total += scaled
		c.state.UnscaledDelta = order.Dt
		c.state.UnscaledTotal += order.Dt
		event.Publish(c.bus, FrameAck{Frame: order.Frame, Node: c.node})
	}
	return c.state
}

func (c *SteppedSlave) GetMode() Mode { return ModeSteppedSlave }
