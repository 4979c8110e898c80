// Package manager implements the transfer process manager: the single
// logical owner of state transitions. It consumes commands, drives the
// provisioning and data pipelines, polls status checkers and persists every
// mutation through the transactional store path.
//
// The manager holds no locks of its own. All races — between commands,
// provisioning callbacks and status polls — are resolved by the store's
// optimistic version check: the stale writer reloads and re-applies, and the
// fresh state decides whether its mutation still applies.
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/pipeline"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/command"
	"github.com/agri-gaia/DataSpaceConnector/transfer/provision"
	"github.com/agri-gaia/DataSpaceConnector/transfer/query"
	"github.com/agri-gaia/DataSpaceConnector/transfer/store"
	"github.com/agri-gaia/DataSpaceConnector/vault"
)

const (
	defaultIterationInterval = 500 * time.Millisecond
	defaultCommandQueueSize  = 64
)

// ErrQueueFull is returned by EnqueueCommand when the command queue has no
// capacity left.
var ErrQueueFull = errors.New("command queue is full")

// Option configures a Manager.
type Option func(*Manager)

// WithIterationInterval sets the pause between state machine passes.
func WithIterationInterval(interval time.Duration) Option {
	return func(m *Manager) { m.interval = interval }
}

// WithCommandQueueSize bounds the in-memory command queue.
func WithCommandQueueSize(size int) Option {
	return func(m *Manager) { m.commands = make(chan transfer.Command, size) }
}

// WithPolicyResolver supplies the policy attached to provisioning calls. The
// default resolver returns an empty policy; connectors with a policy engine
// plug it in here.
func WithPolicyResolver(resolver func(*transfer.TransferProcess) transfer.Policy) Option {
	return func(m *Manager) { m.resolvePolicy = resolver }
}

// Manager owns the lifecycle of all transfer processes.
type Manager struct {
	store         store.Store
	tx            store.TransactionContext
	vault         vault.Vault
	monitor       monitor.Monitor
	registry      *command.Registry
	provisioners  *provision.Manager
	manifests     *provision.ManifestGenerator
	checkers      *transfer.StatusCheckerRegistry
	pipeline      *pipeline.Service
	resolvePolicy func(*transfer.TransferProcess) transfer.Policy

	interval time.Duration
	commands chan transfer.Command

	// inflight guards against re-dispatching asynchronous work for a
	// process while a previous dispatch is still pending. It is purely a
	// local optimization; correctness relies on the store version check.
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	stop    chan struct{}
	stopped sync.WaitGroup
}

// New creates a manager. All collaborators are mandatory except the monitor.
func New(
	processStore store.Store,
	tx store.TransactionContext,
	secretVault vault.Vault,
	registry *command.Registry,
	provisioners *provision.Manager,
	manifests *provision.ManifestGenerator,
	checkers *transfer.StatusCheckerRegistry,
	pipelineService *pipeline.Service,
	mon monitor.Monitor,
	opts ...Option,
) *Manager {
	if mon == nil {
		mon = monitor.Noop{}
	}
	m := &Manager{
		store:         processStore,
		tx:            tx,
		vault:         secretVault,
		monitor:       mon,
		registry:      registry,
		provisioners:  provisioners,
		manifests:     manifests,
		checkers:      checkers,
		pipeline:      pipelineService,
		resolvePolicy: func(*transfer.TransferProcess) transfer.Policy { return transfer.Policy{} },
		interval:      defaultIterationInterval,
		commands:      make(chan transfer.Command, defaultCommandQueueSize),
		inflight:      map[string]struct{}{},
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the command consumer and the state machine loop. It returns
// immediately; Stop shuts both down.
func (m *Manager) Start(ctx context.Context) {
	m.stopped.Add(2)
	go m.consumeCommands(ctx)
	go m.runStateMachine(ctx)
}

// Stop terminates the background loops and waits for them to drain.
func (m *Manager) Stop() {
	close(m.stop)
	m.stopped.Wait()
}

// EnqueueCommand submits a command for asynchronous processing. It fails
// with ErrQueueFull instead of blocking.
func (m *Manager) EnqueueCommand(cmd transfer.Command) error {
	select {
	case m.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// InitiateConsumerRequest admits a new consumer-side transfer. Admission is
// refused with a conflict when a process for the same data request already
// exists, which makes client retries idempotent at the API layer.
func (m *Manager) InitiateConsumerRequest(ctx context.Context, request transfer.DataRequest) (string, error) {
	id := uuid.NewString()
	err := m.tx.Execute(ctx, func(ctx context.Context) error {
		existing, err := m.store.FindAll(ctx, query.ByField("dataRequest.id", request.ID))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return transfer.Conflict("a transfer process for data request %s already exists", request.ID)
		}

		process, err := transfer.NewProcess(id, transfer.TypeConsumer, request)
		if err != nil {
			return err
		}
		return m.store.Save(ctx, process)
	})
	if err != nil {
		return "", err
	}
	m.monitor.Info("transfer process admitted", "process", id, "request", request.ID)
	return id, nil
}

func (m *Manager) consumeCommands(ctx context.Context) {
	defer m.stopped.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case cmd := <-m.commands:
			if err := m.registry.Dispatch(ctx, cmd); err != nil {
				m.logCommandFailure(cmd, err)
			}
		}
	}
}

func (m *Manager) logCommandFailure(cmd transfer.Command, err error) {
	switch {
	case transfer.IsConflict(err), transfer.IsNotFound(err):
		m.monitor.Info("command not applied", "kind", cmd.Kind(), "process", cmd.TargetID(), "reason", err)
	default:
		m.monitor.Severe("command dispatch failed", "kind", cmd.Kind(), "process", cmd.TargetID(), "error", err)
	}
}

func (m *Manager) runStateMachine(ctx context.Context) {
	defer m.stopped.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.processAll(ctx)
		}
	}
}

// processAll runs one pass over every actionable state.
func (m *Manager) processAll(ctx context.Context) {
	for _, step := range []struct {
		state State
		fn    func(context.Context, *transfer.TransferProcess)
	}{
		{State(transfer.StateInitial), m.processInitial},
		{State(transfer.StateProvisioning), m.processProvisioning},
		{State(transfer.StateProvisioned), m.processProvisioned},
		{State(transfer.StateRequested), m.processRequested},
		{State(transfer.StateInProgress), m.processInProgress},
		{State(transfer.StateDeprovisioning), m.processDeprovisioning},
	} {
		processes, err := m.store.FindAll(ctx, query.ByState(string(step.state)))
		if err != nil {
			m.monitor.Severe("listing processes failed", "state", step.state, "error", err)
			continue
		}
		for _, process := range processes {
			step.fn(ctx, process)
		}
	}
}

// State aliases the domain state for the processing table.
type State = transfer.State

func (m *Manager) markInflight(key string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if _, busy := m.inflight[key]; busy {
		return false
	}
	m.inflight[key] = struct{}{}
	return true
}

func (m *Manager) clearInflight(key string) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	delete(m.inflight, key)
}
