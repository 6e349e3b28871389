package clock

import (
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/fdp/event"
)

// FrameOrder is published by a SteppedMaster on every advance; each
// participating node is expected to consume it, advance to match, and
// publish exactly one FrameAck naming itself.
type FrameOrder struct {
	Frame uint64
	Dt    float64
}

// FrameAck is published by a participant once it has caught up to the
// FrameOrder naming the same frame.
type FrameAck struct {
	Frame uint64
	Node  string
}

// SteppedMaster advances a fixed delta per call, publishes FrameOrder, and
// blocks further advancement until a FrameAck has been observed from every
// known participant — or until the per-frame ack timeout (measured in
// ticks, not wall time) elapses, at which point it logs and proceeds as if
// the missing nodes had acked (spec §4.7, §5 "Cancellation & timeouts").
//
// Open question (preserved, not resolved, per spec §9): set_time_scale's
// interaction with a pending ack-timeout. This implementation applies
// time_scale only to the Dt published to slaves; the timeout itself is
// always measured in whole Update calls ("ticks"), never wall time or
// scaled time, so changing time_scale mid-wait cannot extend or shorten an
// already-pending timeout.
type SteppedMaster struct {
	baseState

	bus          *event.Bus
	dt           float64
	ackTimeout   uint64
	participants map[string]struct{}

	pendingSince uint64
	acked        map[string]struct{}
	waiting      bool
}

// NewSteppedMaster constructs a master clock that expects one FrameAck per
// name in participants for every frame it advances. If acks are still
// missing, the ackTimeoutTicks-th Update call after a FrameOrder proceeds
// anyway.
func NewSteppedMaster(bus *event.Bus, dt float64, participants []string, ackTimeoutTicks uint64) *SteppedMaster {
	event.Register[FrameOrder](bus)
	event.Register[FrameAck](bus)
	set := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	return &SteppedMaster{
		baseState:    newBaseState(),
		bus:          bus,
		dt:           dt,
		ackTimeout:   ackTimeoutTicks,
		participants: set,
		acked:        make(map[string]struct{}, len(participants)),
	}
}

// Update drains any FrameAck events observed for the currently pending
// frame; once every participant has acked (or the ack timeout elapses) it
// advances to the next frame and publishes a fresh FrameOrder. Otherwise it
// returns the unchanged current state, having made no progress.
func (c *SteppedMaster) Update() GlobalTime {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waiting {
		for _, ack := range event.Consume[FrameAck](c.bus) {
			if ack.Frame != c.state.Frame {
				continue
			}
			if _, known := c.participants[ack.Node]; !known {
				continue
			}
			c.acked[ack.Node] = struct{}{}
		}

		c.pendingSince++
		if len(c.acked) < len(c.participants) && c.pendingSince < c.ackTimeout {
			return c.state
		}
		if len(c.acked) < len(c.participants) {
			bark.Warn("fdp/clock: stepped-master ack timeout, proceeding without missing participants")
		}
	}

	scaled := c.dt * c.state.TimeScale
	c.state.Frame++
	c.state.Delta = scaled
	c.state.Total += scaled
	c.state.UnscaledDelta = c.dt
	c.state.UnscaledTotal += c.dt

	c.acked = make(map[string]struct{}, len(c.participants))
	c.pendingSince = 0
	c.waiting = len(c.participants) > 0

	event.Publish(c.bus, FrameOrder{Frame: c.state.Frame, Dt: scaled})
	return c.state
}

func (c *SteppedMaster) GetMode() Mode { return ModeSteppedMaster }
