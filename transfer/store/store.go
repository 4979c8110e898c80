// Package store declares the persistence contract of the transfer engine and
// provides the in-memory implementation used by tests and single-node
// deployments.
package store

import (
	"context"
	"errors"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/query"
)

// ErrNotFound is returned when no process exists for the requested id.
var ErrNotFound = errors.New("transfer process not found")

// ErrStaleVersion is returned by Save when the stored version marker has
// advanced past the caller's copy. The caller must reload and re-apply its
// mutation.
var ErrStaleVersion = errors.New("transfer process version is stale")

// Store persists transfer processes. Implementations must be safe for
// concurrent use; the optimistic version check in Save is the only
// serialization mechanism the engine relies on, since the manager may be one
// of several replicas.
type Store interface {
	// Find returns the process with the given id, or ErrNotFound.
	Find(ctx context.Context, id string) (*transfer.TransferProcess, error)

	// FindAll returns the processes matching the specification. An empty
	// specification matches everything.
	FindAll(ctx context.Context, spec query.Spec) ([]*transfer.TransferProcess, error)

	// Save inserts or updates a process. Updates whose StateCount has not
	// advanced past the stored one fail with ErrStaleVersion and leave the
	// stored copy untouched.
	Save(ctx context.Context, process *transfer.TransferProcess) error
}

// TransactionContext wraps store interactions in a transaction boundary
// supplied by the hosting environment. The in-memory implementation simply
// executes the function; database-backed deployments substitute a real
// transaction.
type TransactionContext interface {
	// Execute runs fn within a transaction, committing on nil and rolling
	// back on error. The error from fn is returned unchanged.
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughTransactionContext executes the function without transactional
// guarantees beyond those of the underlying store.
type PassthroughTransactionContext struct{}

// Execute implements TransactionContext.
func (PassthroughTransactionContext) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
