package stream

// State is the lifecycle state of a DataSource. Transitions happen only
// inside Initialize, Prepare, Start and Stop; every other operation just
// reads the current state to decide whether it is allowed.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StatePrepared
	StateRunning
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
