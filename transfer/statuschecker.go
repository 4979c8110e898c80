package transfer

import "context"

// StatusChecker polls an external system to decide whether an in-progress
// transfer has actually finished. Implementations must treat recognized
// transient conditions (missing bucket, throttling) as "not yet complete"
// rather than failing; any other error is fatal and propagates.
type StatusChecker interface {
	// IsComplete reports whether the transfer backing process has finished.
	// resources holds the provisioned resources recorded on the process;
	// when empty, implementations derive the check target from the
	// transfer's destination address instead.
	IsComplete(ctx context.Context, process *TransferProcess, resources []ProvisionedResource) (bool, error)
}

// StatusCheckerRegistry maps a destination address type to the checker
// responsible for it. The registry is assembled once at process start and is
// read-only afterwards, so it is safe for concurrent use.
type StatusCheckerRegistry struct {
	checkers map[string]StatusChecker
}

// NewStatusCheckerRegistry creates an empty registry.
func NewStatusCheckerRegistry() *StatusCheckerRegistry {
	return &StatusCheckerRegistry{checkers: map[string]StatusChecker{}}
}

// Register binds a checker to a destination address type, replacing any
// previous binding.
func (r *StatusCheckerRegistry) Register(destinationType string, checker StatusChecker) {
	r.checkers[destinationType] = checker
}

// Resolve returns the checker for the destination type, or nil.
func (r *StatusCheckerRegistry) Resolve(destinationType string) StatusChecker {
	return r.checkers[destinationType]
}
