package command

import (
	"context"
	"errors"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/store"
)

// transition applies a state transition to the target of a command under the
// transactional load-validate-mutate-persist path. A save rejected for a
// stale version re-loads and re-applies; the fresh copy's state decides
// whether the command still applies, which resolves races between
// concurrent commands on the same process.
func transition(
	ctx context.Context,
	processStore store.Store,
	tx store.TransactionContext,
	cmd transfer.Command,
	apply func(*transfer.TransferProcess) error,
) error {
	return tx.Execute(ctx, func(ctx context.Context) error {
		for {
			process, err := processStore.Find(ctx, cmd.TargetID())
			if errors.Is(err, store.ErrNotFound) {
				return transfer.NotFound("transfer process %s does not exist", cmd.TargetID())
			}
			if err != nil {
				return err
			}

			if err := apply(process); err != nil {
				if errors.Is(err, transfer.ErrIllegalTransition) {
					return transfer.Conflict("command %q not applicable to process %s in state %s",
						cmd.Kind(), process.ID, process.State)
				}
				return err
			}

			err = processStore.Save(ctx, process)
			if errors.Is(err, store.ErrStaleVersion) {
				continue
			}
			return err
		}
	})
}

// CancelHandler cancels a transfer process.
type CancelHandler struct {
	store   store.Store
	tx      store.TransactionContext
	monitor monitor.Monitor
}

// NewCancelHandler creates the handler for cancel commands.
func NewCancelHandler(s store.Store, tx store.TransactionContext, mon monitor.Monitor) *CancelHandler {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &CancelHandler{store: s, tx: tx, monitor: mon}
}

// Kind implements Handler.
func (h *CancelHandler) Kind() transfer.CommandKind {
	return transfer.KindCancelTransfer
}

// Handle implements Handler. A process already in CANCELLED reports a
// conflict, which callers treat as convergence under redelivery.
func (h *CancelHandler) Handle(ctx context.Context, cmd transfer.Command) error {
	err := transition(ctx, h.store, h.tx, cmd, func(p *transfer.TransferProcess) error {
		return p.TransitionCancelled()
	})
	if err == nil {
		h.monitor.Info("transfer process cancelled", "process", cmd.TargetID())
	}
	return err
}

// DeprovisionHandler moves a transfer process into DEPROVISIONING; the
// process manager picks the state up and dispatches the actual teardown.
type DeprovisionHandler struct {
	store   store.Store
	tx      store.TransactionContext
	monitor monitor.Monitor
}

// NewDeprovisionHandler creates the handler for deprovision commands.
func NewDeprovisionHandler(s store.Store, tx store.TransactionContext, mon monitor.Monitor) *DeprovisionHandler {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &DeprovisionHandler{store: s, tx: tx, monitor: mon}
}

// Kind implements Handler.
func (h *DeprovisionHandler) Kind() transfer.CommandKind {
	return transfer.KindDeprovision
}

// Handle implements Handler.
func (h *DeprovisionHandler) Handle(ctx context.Context, cmd transfer.Command) error {
	err := transition(ctx, h.store, h.tx, cmd, func(p *transfer.TransferProcess) error {
		return p.TransitionDeprovisioning()
	})
	if err == nil {
		h.monitor.Info("transfer process deprovisioning", "process", cmd.TargetID())
	}
	return err
}
