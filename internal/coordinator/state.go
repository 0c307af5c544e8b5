package coordinator

// State is one step of the job's state machine (spec.md §4.8). The
// Coordinator only ever moves forward, except into Aborted, which can be
// reached from any state.
type State int

const (
	StateInit State = iota
	StateLocked
	StateSnapshotted
	StateCached
	StateValidated
	StateDumping
	StateFinalizing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLocked:
		return "LOCKED"
	case StateSnapshotted:
		return "SNAPSHOTTED"
	case StateCached:
		return "CACHED"
	case StateValidated:
		return "VALIDATED"
	case StateDumping:
		return "DUMPING"
	case StateFinalizing:
		return "FINALIZING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}
