// Package clock provides the Fast Data Plane TimeController variants
// (spec §4.7): real-time, fixed-step/stepping, stepped-master,
// stepped-slave, replay, and a hot-swappable proxy over all of them.
package clock

import "sync"

// Mode names which TimeController variant produced a GlobalTime.
type Mode int

const (
	ModeRealTime Mode = iota
	ModeFixedStep
	ModeSteppedMaster
	ModeSteppedSlave
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeRealTime:
		return "RealTime"
	case ModeFixedStep:
		return "FixedStep"
	case ModeSteppedMaster:
		return "SteppedMaster"
	case ModeSteppedSlave:
		return "SteppedSlave"
	case ModeReplay:
		return "Replay"
	default:
		return "Unknown"
	}
}

// GlobalTime is the per-tick time state every controller variant produces,
// installed into the store's GlobalTime singleton by the scheduler.
type GlobalTime struct {
	Frame         uint64
	Delta         float64
	Total         float64
	TimeScale     float64
	UnscaledDelta float64
	UnscaledTotal float64
}

// Controller is the contract every TimeController variant satisfies (spec
// §4.7: "all variants support get_current_state, seed_state, set_time_scale,
// get_mode").
type Controller interface {
	// Update advances the controller by whatever its variant's own rule is
	// (wall-clock measurement, the last explicit Step, a received
	// FrameOrder, ...) and returns the resulting state.
	Update() GlobalTime
	GetCurrentState() GlobalTime
	SeedState(s GlobalTime)
	SetTimeScale(scale float64)
	GetMode() Mode
}

// clampScale rejects a negative time_scale per spec §4.7 ("set_time_scale(s
// >= 0)"); values below zero are floored to zero rather than returned as an
// error, since no variant's contract allows SetTimeScale to fail.
func clampScale(scale float64) float64 {
	if scale < 0 {
		return 0
	}
	return scale
}

// baseState is embedded by every concrete controller to share the common
// mutex-guarded GlobalTime bookkeeping (current state, time scale).
type baseState struct {
	mu    sync.Mutex
	state GlobalTime
}

func newBaseState() baseState {
	return baseState{state: GlobalTime{TimeScale: 1}}
}

func (b *baseState) GetCurrentState() GlobalTime {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *baseState) SeedState(s GlobalTime) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *baseState) SetTimeScale(scale float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.TimeScale = clampScale(scale)
}
