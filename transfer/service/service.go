// Package service exposes the transfer process engine to callers such as a
// management API. It validates input, performs dry-run state checks and
// delegates mutations to the process manager's command queue; it never
// mutates an aggregate itself.
package service

import (
	"context"
	"errors"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/query"
	"github.com/agri-gaia/DataSpaceConnector/transfer/store"
)

// ProcessManager is the slice of the manager the service depends on.
type ProcessManager interface {
	// InitiateConsumerRequest admits a new consumer-side transfer and
	// returns the process id.
	InitiateConsumerRequest(ctx context.Context, request transfer.DataRequest) (string, error)

	// EnqueueCommand submits a command for asynchronous processing.
	EnqueueCommand(cmd transfer.Command) error
}

// Service is the read and command facade over transfer processes.
type Service struct {
	store     store.Store
	tx        store.TransactionContext
	manager   ProcessManager
	validator *query.Validator
}

// New creates the service. The validator bounds which fields query filters
// may reference; pass the variants of the resource interfaces wired into the
// connector so their fields are queryable too.
func New(s store.Store, tx store.TransactionContext, manager ProcessManager, validator *query.Validator) *Service {
	return &Service{store: s, tx: tx, manager: manager, validator: validator}
}

// FindByID returns the process with the given id, or a typed not-found
// error.
func (s *Service) FindByID(ctx context.Context, id string) (*transfer.TransferProcess, error) {
	process, err := s.store.Find(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, transfer.NotFound("transfer process %s does not exist", id)
	}
	return process, err
}

// GetState returns just the lifecycle state of a process.
func (s *Service) GetState(ctx context.Context, id string) (transfer.State, error) {
	process, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return process.State, nil
}

// Query returns the processes matching the specification. Filters naming
// fields outside the aggregate's canonical model are rejected with a typed
// bad-request error before the store is consulted.
func (s *Service) Query(ctx context.Context, spec query.Spec) ([]*transfer.TransferProcess, error) {
	if s.validator != nil {
		if err := s.validator.Validate(spec); err != nil {
			return nil, transfer.BadRequest("invalid query: %s", err)
		}
	}
	return s.store.FindAll(ctx, spec)
}

// InitiateTransfer admits a new consumer-side transfer request and returns
// the id of the created process.
func (s *Service) InitiateTransfer(ctx context.Context, request transfer.DataRequest) (string, error) {
	if request.ID == "" {
		return "", transfer.BadRequest("data request id must not be empty")
	}
	if request.DataDestination.Type == "" {
		return "", transfer.BadRequest("data destination type must not be empty")
	}
	return s.manager.InitiateConsumerRequest(ctx, request)
}

// Cancel requests cancellation of a process. The transition is checked
// against a copy first so callers get an immediate typed conflict for
// terminal processes; the authoritative transition happens asynchronously in
// the command handler. The returned snapshot shows the process before the
// cancellation takes effect.
func (s *Service) Cancel(ctx context.Context, id string) (*transfer.TransferProcess, error) {
	return s.submit(ctx, id, transfer.CancelTransferCommand{TransferProcessID: id}, func(p *transfer.TransferProcess) error {
		return p.TransitionCancelled()
	})
}

// Deprovision requests the release of a process's resources. Follows the
// same dry-run-then-enqueue shape as Cancel.
func (s *Service) Deprovision(ctx context.Context, id string) (*transfer.TransferProcess, error) {
	return s.submit(ctx, id, transfer.DeprovisionRequest{TransferProcessID: id}, func(p *transfer.TransferProcess) error {
		return p.TransitionDeprovisioning()
	})
}

func (s *Service) submit(
	ctx context.Context,
	id string,
	cmd transfer.Command,
	dryRun func(*transfer.TransferProcess) error,
) (*transfer.TransferProcess, error) {
	var snapshot *transfer.TransferProcess
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		process, err := s.store.Find(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return transfer.NotFound("transfer process %s does not exist", id)
		}
		if err != nil {
			return err
		}

		if err := dryRun(process.Copy()); err != nil {
			if errors.Is(err, transfer.ErrIllegalTransition) {
				return transfer.Conflict("command %q not applicable to process %s in state %s",
					cmd.Kind(), process.ID, process.State)
			}
			return err
		}

		snapshot = process
		return s.manager.EnqueueCommand(cmd)
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
