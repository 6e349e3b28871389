package fdp

// LifecycleState is the entity construction/teardown state machine named
// in spec §3: Constructing -> Active -> TearDown -> (free).
type LifecycleState int

const (
	Constructing LifecycleState = iota
	Active
	TearDown
)

func (s LifecycleState) String() string {
	switch s {
	case Constructing:
		return "Constructing"
	case Active:
		return "Active"
	case TearDown:
		return "TearDown"
	default:
		return "Unknown"
	}
}

// ConstructionOrder is published when an entity begins construction,
// naming the blueprint that should populate it. Participating modules
// (systems) consume it and each publish one ConstructionAck.
type ConstructionOrder struct {
	Entity      Entity
	BlueprintID int
	Frame       uint64
}

// ConstructionAck is published by a module once it has finished its part
// of constructing an entity.
type ConstructionAck struct {
	Entity  Entity
	Success bool
}

// TeardownOrder is published when an entity begins teardown; children or
// dependents consume it to detach (spec §9: cyclic graphs via explicit
// breakage events rather than owned references).
type TeardownOrder struct {
	Entity Entity
	Frame  uint64
}

// TeardownAck mirrors ConstructionAck for the symmetric teardown path.
type TeardownAck struct {
	Entity  Entity
	Success bool
}

// DefaultLifecycleTimeoutFrames is the default construction/teardown
// acknowledgement budget (spec §3: "default 300").
const DefaultLifecycleTimeoutFrames = 300

// pendingLifecycle tracks one entity's in-flight construction or teardown.
type pendingLifecycle struct {
	state        LifecycleState
	requiredAcks int
	acksSeen     int
	failed       bool
	deadline     uint64
}

// lifecycleManager drives the construction/teardown handshake described in
// spec §3. It is owned by EntityStore and driven only through the store's
// BeginConstruction/BeginTeardown/Ack*/ExpireLifecycleTimeouts calls; the
// kernel scheduler does not call any of them.
type lifecycleManager struct {
	pending        map[uint32]*pendingLifecycle
	timeoutFrames  uint64
}

func newLifecycleManager(timeoutFrames uint64) *lifecycleManager {
	if timeoutFrames == 0 {
		timeoutFrames = DefaultLifecycleTimeoutFrames
	}
	return &lifecycleManager{
		pending:       make(map[uint32]*pendingLifecycle),
		timeoutFrames: timeoutFrames,
	}
}

// begin registers e as entering state, expecting requiredAcks before it
// may be promoted (to Active for Constructing, to free for TearDown).
func (m *lifecycleManager) begin(e Entity, state LifecycleState, requiredAcks int, currentFrame uint64) {
	m.pending[e.Index] = &pendingLifecycle{
		state:        state,
		requiredAcks: requiredAcks,
		deadline:     currentFrame + m.timeoutFrames,
	}
}

// ack records one acknowledgement for e. It returns true once every
// required ack has landed (promotion should happen) and whether any ack
// reported failure (abort should happen instead).
func (m *lifecycleManager) ack(e Entity, success bool) (complete bool, failed bool) {
	p, ok := m.pending[e.Index]
	if !ok {
		return false, false
	}
	if !success {
		p.failed = true
	}
	p.acksSeen++
	if p.acksSeen >= p.requiredAcks {
		delete(m.pending, e.Index)
		return true, p.failed
	}
	return false, false
}

// expired returns entities whose deadline has passed as of currentFrame,
// clearing them from the pending set.
func (m *lifecycleManager) expired(currentFrame uint64) []Entity {
	var out []Entity
	for idx, p := range m.pending {
		if currentFrame >= p.deadline {
			out = append(out, Entity{Index: idx})
			delete(m.pending, idx)
		}
	}
	return out
}
