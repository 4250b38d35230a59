package workfile

// State tracks where the host session is in the workfile lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}
