package transfer

import (
	"fmt"
	"time"
)

// ProcessType distinguishes the two roles a connector can play in a
// transfer.
type ProcessType string

const (
	// TypeConsumer marks a process on the requesting connector, which
	// provisions the data destination.
	TypeConsumer ProcessType = "CONSUMER"

	// TypeProvider marks a process on the connector serving the data.
	TypeProvider ProcessType = "PROVIDER"
)

// TransferProcess is the durable aggregate tracking one data movement. It is
// mutated exclusively by the process manager in response to commands or
// pipeline callbacks, and becomes immutable once a terminal state is
// reached.
//
// Transition methods validate the current state against a fixed allow-list
// and never touch persistence; callers must explicitly save the result.
type TransferProcess struct {
	// ID is the stable process identifier, assigned at creation.
	ID string `json:"id"`

	// Type is the connector role for this transfer.
	Type ProcessType `json:"type"`

	// State is the current lifecycle stage.
	State State `json:"state"`

	// StateCount is the optimistic-concurrency version marker. Every
	// mutation increments it; the store rejects writes whose count has not
	// advanced past the stored one.
	StateCount int64 `json:"stateCount"`

	// StateTimestamp records when the current state was entered.
	StateTimestamp time.Time `json:"stateTimestamp"`

	// ErrorDetail carries the operator-facing reason when State is ERROR.
	ErrorDetail string `json:"errorDetail,omitempty"`

	// DataRequest is the immutable request this process fulfills.
	DataRequest DataRequest `json:"dataRequest"`

	// ResourceManifest lists the resources to provision before the
	// transfer can run.
	ResourceManifest []ResourceDefinition `json:"resourceManifest,omitempty"`

	// ProvisionedResources collects provisioning results, append-only until
	// deprovisioning releases them.
	ProvisionedResources []ProvisionedResource `json:"provisionedResources,omitempty"`

	// DeprovisionedResources records which provisioned resources have been
	// released.
	DeprovisionedResources []DeprovisionedResource `json:"deprovisionedResources,omitempty"`

	// TransferComplete is set when the status checker observed the external
	// completion marker. Resources may still await release at that point.
	TransferComplete bool `json:"transferComplete,omitempty"`

	// CreatedAt is when the process was admitted.
	CreatedAt time.Time `json:"createdAt"`
}

// NewProcess creates a transfer process in INITIAL state for the given
// request.
func NewProcess(id string, typ ProcessType, request DataRequest) (*TransferProcess, error) {
	if id == "" {
		return nil, BadRequest("transfer process id must not be empty")
	}
	if request.ID == "" {
		return nil, BadRequest("data request id must not be empty")
	}
	now := time.Now().UTC()
	return &TransferProcess{
		ID:             id,
		Type:           typ,
		State:          StateInitial,
		StateCount:     1,
		StateTimestamp: now,
		DataRequest:    request.Copy(),
		CreatedAt:      now,
	}, nil
}

// TransitionProvisioning moves the process into PROVISIONING and records the
// resource manifest. Re-entering PROVISIONING is legal so that failed
// provisioning attempts can be re-dispatched.
func (p *TransferProcess) TransitionProvisioning(manifest []ResourceDefinition) error {
	if err := p.transitionTo(StateProvisioning, StateInitial, StateProvisioning); err != nil {
		return err
	}
	p.ResourceManifest = manifest
	return nil
}

// TransitionProvisioned moves the process into PROVISIONED once the manifest
// is satisfied.
func (p *TransferProcess) TransitionProvisioned() error {
	return p.transitionTo(StateProvisioned, StateProvisioning)
}

// TransitionRequested moves the process into REQUESTED.
func (p *TransferProcess) TransitionRequested() error {
	return p.transitionTo(StateRequested, StateProvisioned)
}

// TransitionInProgress moves the process into IN_PROGRESS.
func (p *TransferProcess) TransitionInProgress() error {
	return p.transitionTo(StateInProgress, StateRequested)
}

// TransitionCompleted moves the process into the terminal COMPLETED state.
// Callers must ensure all provisioned resources have been released first;
// see ResourcesReleased.
func (p *TransferProcess) TransitionCompleted() error {
	return p.transitionTo(StateCompleted, StateRequested, StateInProgress)
}

// TransitionDeprovisioning moves the process into DEPROVISIONING. Legal from
// any non-terminal state, including DEPROVISIONING itself for re-dispatch.
func (p *TransferProcess) TransitionDeprovisioning() error {
	return p.transitionTo(StateDeprovisioning, nonTerminalStates...)
}

// TransitionDeprovisioned moves the process into the terminal DEPROVISIONED
// state.
func (p *TransferProcess) TransitionDeprovisioned() error {
	return p.transitionTo(StateDeprovisioned, StateDeprovisioning)
}

// TransitionCancelled moves the process into the terminal CANCELLED state.
// A cancelled process never re-enters any non-terminal state.
func (p *TransferProcess) TransitionCancelled() error {
	return p.transitionTo(StateCancelled, nonTerminalStates...)
}

// TransitionError moves the process into the terminal ERROR state with the
// given detail.
func (p *TransferProcess) TransitionError(detail string) error {
	if err := p.transitionTo(StateError, nonTerminalStates...); err != nil {
		return err
	}
	p.ErrorDetail = detail
	return nil
}

func (p *TransferProcess) transitionTo(target State, allowed ...State) error {
	for _, s := range allowed {
		if p.State == s {
			p.State = target
			p.StateCount++
			p.StateTimestamp = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for process %s", ErrIllegalTransition, p.State, target, p.ID)
}

// AddProvisionedResource appends a provisioning result and bumps the version
// marker.
func (p *TransferProcess) AddProvisionedResource(resource ProvisionedResource) {
	p.ProvisionedResources = append(p.ProvisionedResources, resource)
	p.StateCount++
}

// AddDeprovisionedResource records a released resource and bumps the version
// marker. Duplicate records for the same resource id are collapsed, keeping
// teardown idempotent under command redelivery.
func (p *TransferProcess) AddDeprovisionedResource(resource DeprovisionedResource) {
	for i, existing := range p.DeprovisionedResources {
		if existing.ProvisionedResourceID == resource.ProvisionedResourceID {
			p.DeprovisionedResources[i] = resource
			p.StateCount++
			return
		}
	}
	p.DeprovisionedResources = append(p.DeprovisionedResources, resource)
	p.StateCount++
}

// MarkTransferComplete records that the status checker observed external
// completion and bumps the version marker.
func (p *TransferProcess) MarkTransferComplete() {
	if !p.TransferComplete {
		p.TransferComplete = true
		p.StateCount++
	}
}

// ProvisionComplete reports whether every manifest entry has a matching
// provisioned resource.
func (p *TransferProcess) ProvisionComplete() bool {
	for _, def := range p.ResourceManifest {
		found := false
		for _, res := range p.ProvisionedResources {
			if res.ResourceDefinitionID() == def.ID() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ResourcesReleased reports whether every provisioned resource has a
// deprovisioning record. It is vacuously true for processes without
// resources.
func (p *TransferProcess) ResourcesReleased() bool {
	for _, res := range p.ProvisionedResources {
		released := false
		for _, dep := range p.DeprovisionedResources {
			if dep.ProvisionedResourceID == res.ID() {
				released = true
				break
			}
		}
		if !released {
			return false
		}
	}
	return true
}

// PendingResources returns the provisioned resources that have not been
// released yet.
func (p *TransferProcess) PendingResources() []ProvisionedResource {
	var pending []ProvisionedResource
	for _, res := range p.ProvisionedResources {
		released := false
		for _, dep := range p.DeprovisionedResources {
			if dep.ProvisionedResourceID == res.ID() {
				released = true
				break
			}
		}
		if !released {
			pending = append(pending, res)
		}
	}
	return pending
}

// Copy returns a deep-enough copy for dry-run transition checks: slices are
// cloned, while the immutable definition and resource values are shared.
func (p *TransferProcess) Copy() *TransferProcess {
	cp := *p
	cp.DataRequest = p.DataRequest.Copy()
	cp.ResourceManifest = append([]ResourceDefinition(nil), p.ResourceManifest...)
	cp.ProvisionedResources = append([]ProvisionedResource(nil), p.ProvisionedResources...)
	cp.DeprovisionedResources = append([]DeprovisionedResource(nil), p.DeprovisionedResources...)
	return &cp
}
