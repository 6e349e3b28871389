// Package kernel provides the Fast Data Plane SystemScheduler: phase-ordered
// execution with reactive and background policies, backed by a
// clock.Controller and driving fdp.EntityStore / event.Bus through a tick
// (spec §4.8).
package kernel

// Phase names a fixed position in the tick pipeline. Systems run in phase
// order; within a phase, in registration order (spec §4.8).
type Phase int

const (
	Initialization Phase = iota
	Input
	PreSimulation
	BeforeSync
	Simulation
	PostSimulation
	Export
	Presentation

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case Initialization:
		return "Initialization"
	case Input:
		return "Input"
	case PreSimulation:
		return "PreSimulation"
	case BeforeSync:
		return "BeforeSync"
	case Simulation:
		return "Simulation"
	case PostSimulation:
		return "PostSimulation"
	case Export:
		return "Export"
	case Presentation:
		return "Presentation"
	default:
		return "Unknown"
	}
}

// phaseOrder is the fixed execution order of every phase (spec §4.8).
var phaseOrder = [...]Phase{
	Initialization,
	Input,
	PreSimulation,
	BeforeSync,
	Simulation,
	PostSimulation,
	Export,
	Presentation,
}
