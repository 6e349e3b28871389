package clock

import (
	"testing"

	"github.com/TheBitDrifter/fdp/event"
)

func TestSteppingAdvancesByExactDelta(t *testing.T) {
	c := NewStepping()
	c.SetTimeScale(2)

	s := c.Step(0.5)
	if s.Delta != 1.0 {
		t.Fatalf("Delta = %v, want 1.0 (0.5 * scale 2)", s.Delta)
	}
	if s.Frame != 1 {
		t.Fatalf("Frame = %d, want 1", s.Frame)
	}
	if s.UnscaledDelta != 0.5 {
		t.Fatalf("UnscaledDelta = %v, want 0.5", s.UnscaledDelta)
	}

	if u := c.Update(); u.Frame != 1 {
		t.Fatalf("Update() without an intervening Step changed frame to %d", u.Frame)
	}

	c.Step(0.5)
	if got := c.GetCurrentState().Total; got != 2.0 {
		t.Fatalf("Total = %v, want 2.0", got)
	}
}

func TestSeedStatePreservesContinuity(t *testing.T) {
	c := NewStepping()
	c.SeedState(GlobalTime{Frame: 41, Total: 10, TimeScale: 1})
	s := c.Step(1)
	if s.Frame != 42 {
		t.Fatalf("Frame after seeded step = %d, want 42", s.Frame)
	}
	if s.Total != 11 {
		t.Fatalf("Total after seeded step = %v, want 11", s.Total)
	}
}

func TestSteppedMasterSlaveHandshake(t *testing.T) {
	bus := event.NewBus()
	master := NewSteppedMaster(bus, 1.0/60, []string{"slave-a", "slave-b"}, 300)
	slaveA := NewSteppedSlave(bus, "slave-a")
	slaveB := NewSteppedSlave(bus, "slave-b")

	s := master.Update() // publishes FrameOrder{Frame:1}
	if s.Frame != 1 {
		t.Fatalf("master Frame after first Update = %d, want 1", s.Frame)
	}

	bus.SwapBuffers() // FrameOrder becomes visible to slaves

	sa := slaveA.Update()
	sb := slaveB.Update()
	if sa.Frame != 1 || sb.Frame != 1 {
		t.Fatalf("slave frames = %d, %d, want 1, 1", sa.Frame, sb.Frame)
	}

	bus.SwapBuffers() // FrameAcks become visible to the master

	s2 := master.Update()
	if s2.Frame != 2 {
		t.Fatalf("master Frame after both acks landed = %d, want 2 (should have advanced)", s2.Frame)
	}
}

func TestSteppedMasterTimesOutMissingAck(t *testing.T) {
	bus := event.NewBus()
	master := NewSteppedMaster(bus, 1.0/60, []string{"only-known-slave"}, 2)

	s := master.Update() // Frame 1, waiting
	if s.Frame != 1 {
		t.Fatalf("Frame = %d, want 1", s.Frame)
	}

	// No slave ever acks. On the ackTimeout-th Update call after the
	// FrameOrder, the master proceeds anyway.
	master.Update() // pendingSince 1
	s2 := master.Update()
	if s2.Frame != 2 {
		t.Fatalf("Frame after timeout = %d, want 2 (should proceed without the missing ack)", s2.Frame)
	}
}

func TestSwitchableHotSwapPreservesState(t *testing.T) {
	a := NewStepping()
	a.Step(1)
	a.Step(1)

	sw := NewSwitchable(a)
	if sw.GetCurrentState().Frame != 2 {
		t.Fatalf("Frame via Switchable = %d, want 2", sw.GetCurrentState().Frame)
	}

	b := NewStepping()
	sw.Swap(b)

	if sw.GetMode() != ModeFixedStep {
		t.Fatalf("GetMode() after swap = %v, want ModeFixedStep", sw.GetMode())
	}
	if got := sw.GetCurrentState().Frame; got != 2 {
		t.Fatalf("Frame immediately after swap = %d, want 2 (seeded from outgoing controller)", got)
	}

	s := sw.Update()
	if s.Frame != 2 {
		t.Fatalf("Update() after swap changed frame via Update alone = %d, want 2", s.Frame)
	}
}

func TestSetTimeScaleClampsNegative(t *testing.T) {
	c := NewRealTime()
	c.SetTimeScale(-5)
	if got := c.GetCurrentState().TimeScale; got != 0 {
		t.Fatalf("TimeScale = %v, want 0 for a negative input", got)
	}
}
