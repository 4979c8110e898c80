package manager

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/provision"
	"github.com/agri-gaia/DataSpaceConnector/transfer/store"
)

// update runs a load-mutate-persist cycle for one process. A stale save
// reloads and re-applies; apply sees the fresh state each attempt and may
// decide to skip persisting by returning false.
func (m *Manager) update(ctx context.Context, processID string, apply func(*transfer.TransferProcess) (bool, error)) error {
	return m.tx.Execute(ctx, func(ctx context.Context) error {
		for {
			process, err := m.store.Find(ctx, processID)
			if err != nil {
				return err
			}

			persist, err := apply(process)
			if err != nil || !persist {
				return err
			}

			err = m.store.Save(ctx, process)
			if errors.Is(err, store.ErrStaleVersion) {
				continue
			}
			return err
		}
	})
}

// processInitial generates the resource manifest and moves the process into
// PROVISIONING.
func (m *Manager) processInitial(ctx context.Context, snapshot *transfer.TransferProcess) {
	policy := m.resolvePolicy(snapshot)
	manifest := m.manifests.GenerateConsumerManifest(snapshot, policy)

	err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
		if p.State != transfer.StateInitial {
			return false, nil
		}
		return true, p.TransitionProvisioning(manifest)
	})
	if err != nil {
		m.monitor.Severe("transition to provisioning failed", "process", snapshot.ID, "error", err)
	}
}

// processProvisioning advances a fully provisioned process and dispatches
// provisioning for outstanding manifest entries otherwise.
func (m *Manager) processProvisioning(ctx context.Context, snapshot *transfer.TransferProcess) {
	if snapshot.ProvisionComplete() {
		err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
			if p.State != transfer.StateProvisioning || !p.ProvisionComplete() {
				return false, nil
			}
			return true, p.TransitionProvisioned()
		})
		if err != nil {
			m.monitor.Severe("transition to provisioned failed", "process", snapshot.ID, "error", err)
		}
		return
	}

	key := snapshot.ID + ":provision"
	if !m.markInflight(key) {
		return
	}

	var outstanding []transfer.ResourceDefinition
	for _, definition := range snapshot.ResourceManifest {
		provisioned := false
		for _, resource := range snapshot.ProvisionedResources {
			if resource.ResourceDefinitionID() == definition.ID() {
				provisioned = true
				break
			}
		}
		if !provisioned {
			outstanding = append(outstanding, definition)
		}
	}

	results, err := m.provisioners.Provision(ctx, outstanding, m.resolvePolicy(snapshot))
	if err != nil {
		m.clearInflight(key)
		m.failProcess(ctx, snapshot.ID, err.Error())
		return
	}

	go func() {
		defer m.clearInflight(key)
		for result := range results {
			m.onProvisionResult(ctx, snapshot.ID, result)
		}
	}()
}

// onProvisionResult feeds an asynchronous provisioning result back into the
// state machine through the same transactional path commands use. Results
// for processes that were cancelled in the meantime are discarded.
func (m *Manager) onProvisionResult(ctx context.Context, processID string, result provision.Result) {
	if result.Err != nil {
		if transfer.IsRetryable(result.Err) {
			// The process stays in PROVISIONING; the next pass re-issues
			// the provisioning step.
			m.monitor.Info("provisioning failed, will retry",
				"process", processID, "definition", result.DefinitionID, "error", result.Err)
			return
		}
		m.failProcess(ctx, processID, result.Err.Error())
		return
	}

	response := result.Response
	err := m.update(ctx, processID, func(p *transfer.TransferProcess) (bool, error) {
		if p.State.Terminal() {
			m.monitor.Info("discarding provisioning result for terminated process",
				"process", processID, "state", p.State, "definition", result.DefinitionID)
			return false, nil
		}

		p.AddProvisionedResource(response.Resource)
		if destination, ok := response.Resource.(transfer.DataDestinationResource); ok {
			p.DataRequest.DataDestination = destination.DataAddress()
		}
		return true, nil
	})
	if err != nil {
		m.monitor.Severe("recording provisioned resource failed", "process", processID, "error", err)
		return
	}

	if response.SecretToken != nil {
		if err := m.storeToken(ctx, response); err != nil {
			m.monitor.Severe("storing secret token failed", "process", processID, "error", err)
		}
	}
}

func (m *Manager) storeToken(ctx context.Context, response *transfer.ProvisionResponse) error {
	destination, ok := response.Resource.(transfer.DataDestinationResource)
	if !ok || destination.DataAddress().KeyName() == "" {
		return nil
	}
	raw, err := json.Marshal(response.SecretToken)
	if err != nil {
		return err
	}
	return m.vault.StoreSecret(ctx, destination.DataAddress().KeyName(), string(raw))
}

// processProvisioned moves the process into REQUESTED. Dispatching the
// request to the counterpart connector is the protocol layer's concern; the
// engine records the lifecycle progression.
func (m *Manager) processProvisioned(ctx context.Context, snapshot *transfer.TransferProcess) {
	err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
		if p.State != transfer.StateProvisioned {
			return false, nil
		}
		return true, p.TransitionRequested()
	})
	if err != nil {
		m.monitor.Severe("transition to requested failed", "process", snapshot.ID, "error", err)
	}
}

// processRequested starts the data pipeline when this connector manages the
// movement itself and moves the process into IN_PROGRESS either way;
// completion is detected out of band by the status checker.
func (m *Manager) processRequested(ctx context.Context, snapshot *transfer.TransferProcess) {
	request := transfer.DataFlowRequest{
		ID:                 snapshot.ID,
		ProcessID:          snapshot.ID,
		SourceAddress:      snapshot.DataRequest.SourceAddress,
		DestinationAddress: snapshot.DataRequest.DataDestination,
	}

	err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
		if p.State != transfer.StateRequested {
			return false, nil
		}
		return true, p.TransitionInProgress()
	})
	if err != nil {
		m.monitor.Severe("transition to in progress failed", "process", snapshot.ID, "error", err)
		return
	}

	if !m.pipeline.CanHandle(request) {
		m.monitor.Debug("no local pipeline for transfer, awaiting external completion", "process", snapshot.ID)
		return
	}

	key := snapshot.ID + ":flow"
	if !m.markInflight(key) {
		return
	}
	go func() {
		defer m.clearInflight(key)
		if err := m.pipeline.Transfer(ctx, request); err != nil {
			m.onPipelineFailure(ctx, snapshot.ID, err)
		}
	}()
}

func (m *Manager) onPipelineFailure(ctx context.Context, processID string, cause error) {
	if transfer.IsRetryable(cause) {
		m.monitor.Info("data pipeline failed, will retry", "process", processID, "error", cause)
		return
	}
	m.failProcess(ctx, processID, cause.Error())
}

// processInProgress polls the status checker until the external completion
// marker appears, then releases the provisioned resources and finishes the
// process. A COMPLETED process always satisfies the invariant that its
// resources are absent or released.
func (m *Manager) processInProgress(ctx context.Context, snapshot *transfer.TransferProcess) {
	if !snapshot.TransferComplete {
		checker := m.checkers.Resolve(snapshot.DataRequest.DestinationType())
		if checker == nil {
			m.monitor.Debug("no status checker for destination type",
				"process", snapshot.ID, "type", snapshot.DataRequest.DestinationType())
			return
		}

		complete, err := checker.IsComplete(ctx, snapshot, snapshot.ProvisionedResources)
		if err != nil {
			m.failProcess(ctx, snapshot.ID, err.Error())
			return
		}
		if !complete {
			return
		}

		err = m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
			if p.State != transfer.StateInProgress {
				return false, nil
			}
			p.MarkTransferComplete()
			return true, nil
		})
		if err != nil {
			m.monitor.Severe("recording transfer completion failed", "process", snapshot.ID, "error", err)
			return
		}
		snapshot.MarkTransferComplete()
	}

	if snapshot.ResourcesReleased() {
		err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
			if p.State != transfer.StateInProgress || !p.ResourcesReleased() {
				return false, nil
			}
			return true, p.TransitionCompleted()
		})
		if err != nil {
			m.monitor.Severe("transition to completed failed", "process", snapshot.ID, "error", err)
		} else {
			m.monitor.Info("transfer process completed", "process", snapshot.ID)
		}
		return
	}

	m.dispatchDeprovision(ctx, snapshot)
}

// processDeprovisioning releases outstanding resources and finishes in
// DEPROVISIONED once all of them are gone.
func (m *Manager) processDeprovisioning(ctx context.Context, snapshot *transfer.TransferProcess) {
	if snapshot.ResourcesReleased() {
		err := m.update(ctx, snapshot.ID, func(p *transfer.TransferProcess) (bool, error) {
			if p.State != transfer.StateDeprovisioning || !p.ResourcesReleased() {
				return false, nil
			}
			return true, p.TransitionDeprovisioned()
		})
		if err != nil {
			m.monitor.Severe("transition to deprovisioned failed", "process", snapshot.ID, "error", err)
		} else {
			m.monitor.Info("transfer process deprovisioned", "process", snapshot.ID)
		}
		return
	}

	m.dispatchDeprovision(ctx, snapshot)
}

func (m *Manager) dispatchDeprovision(ctx context.Context, snapshot *transfer.TransferProcess) {
	key := snapshot.ID + ":deprovision"
	if !m.markInflight(key) {
		return
	}

	outcomes, err := m.provisioners.Deprovision(ctx, snapshot.PendingResources(), m.resolvePolicy(snapshot))
	if err != nil {
		m.clearInflight(key)
		m.failProcess(ctx, snapshot.ID, err.Error())
		return
	}

	go func() {
		defer m.clearInflight(key)
		for outcome := range outcomes {
			m.onDeprovisionOutcome(ctx, snapshot.ID, outcome)
		}
	}()
}

func (m *Manager) onDeprovisionOutcome(ctx context.Context, processID string, outcome provision.DeprovisionOutcome) {
	if outcome.Err != nil {
		if transfer.IsRetryable(outcome.Err) {
			m.monitor.Info("deprovisioning failed, will retry",
				"process", processID, "resource", outcome.ResourceID, "error", outcome.Err)
			return
		}
		m.failProcess(ctx, processID, outcome.Err.Error())
		return
	}

	err := m.update(ctx, processID, func(p *transfer.TransferProcess) (bool, error) {
		p.AddDeprovisionedResource(outcome.Resource)
		return true, nil
	})
	if err != nil {
		m.monitor.Severe("recording deprovisioned resource failed", "process", processID, "error", err)
	}
}

// failProcess moves a process into the terminal ERROR state. Processes that
// reached a terminal state in the meantime are left untouched.
func (m *Manager) failProcess(ctx context.Context, processID, detail string) {
	err := m.update(ctx, processID, func(p *transfer.TransferProcess) (bool, error) {
		if p.State.Terminal() {
			m.monitor.Info("discarding error for terminated process",
				"process", processID, "state", p.State, "detail", detail)
			return false, nil
		}
		return true, p.TransitionError(detail)
	})
	if err != nil {
		m.monitor.Severe("transition to error failed", "process", processID, "error", err)
		return
	}
	m.monitor.Severe("transfer process failed", "process", processID, "detail", detail)
}
