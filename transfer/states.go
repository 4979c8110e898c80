package transfer

// State represents a lifecycle stage of a TransferProcess.
type State string

const (
	// StateInitial is the state of a freshly admitted process.
	StateInitial State = "INITIAL"

	// StateProvisioning indicates resource provisioning has been dispatched
	// and results are pending. A process stays here when provisioning fails
	// with a retryable error.
	StateProvisioning State = "PROVISIONING"

	// StateProvisioned indicates every resource of the manifest has been
	// provisioned.
	StateProvisioned State = "PROVISIONED"

	// StateRequested indicates the data movement has been requested from the
	// data plane or the counterpart connector.
	StateRequested State = "REQUESTED"

	// StateInProgress indicates the data movement is underway; completion is
	// detected out of band by a status checker.
	StateInProgress State = "IN_PROGRESS"

	// StateCompleted is terminal: the data arrived and all provisioned
	// resources have been released.
	StateCompleted State = "COMPLETED"

	// StateDeprovisioning indicates resource teardown has been requested.
	StateDeprovisioning State = "DEPROVISIONING"

	// StateDeprovisioned is terminal: teardown finished.
	StateDeprovisioned State = "DEPROVISIONED"

	// StateCancelled is terminal: the process was cancelled before
	// completion.
	StateCancelled State = "CANCELLED"

	// StateError is terminal: the process failed with a non-retryable error.
	// ErrorDetail carries the operator-facing reason.
	StateError State = "ERROR"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateDeprovisioned, StateError:
		return true
	}
	return false
}

// nonTerminalStates enumerates every state from which cancellation and
// deprovisioning remain legal.
var nonTerminalStates = []State{
	StateInitial,
	StateProvisioning,
	StateProvisioned,
	StateRequested,
	StateInProgress,
	StateDeprovisioning,
}
