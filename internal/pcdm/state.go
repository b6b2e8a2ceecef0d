package pcdm

// State is the lifecycle state of a Backend.
type State int

const (
	StateUninitialized State = iota
	StateParametersChanged
	StateInvalidParameters
	StateResultsReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateParametersChanged:
		return "parameters_changed"
	case StateInvalidParameters:
		return "invalid_parameters"
	case StateResultsReady:
		return "results_ready"
	}
	return "unknown"
}

// StateObserver is notified after every state change.
type StateObserver func(old, new State)
