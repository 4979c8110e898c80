// Package command implements the dispatch of transfer process commands: a
// registry mapping command kinds to handlers, and the handlers for the
// externally submittable cancel and deprovision intents.
//
// Commands are delivered at least once. Handlers therefore re-load the
// target aggregate and re-check the state machine before mutating, making
// redelivery converge instead of corrupting state.
package command

import (
	"context"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// Handler processes one command kind. The whole load-validate-mutate-persist
// sequence runs inside the transaction boundary the handler owns.
type Handler interface {
	// Kind is the command kind this handler serves.
	Kind() transfer.CommandKind

	// Handle executes the command. A missing aggregate yields a typed
	// not-found error, an incompatible state a typed conflict; neither
	// mutates anything.
	Handle(ctx context.Context, cmd transfer.Command) error
}

// Registry maps each command kind to exactly one handler.
type Registry struct {
	handlers map[transfer.CommandKind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[transfer.CommandKind]Handler{}}
}

// Register binds a handler to its kind. Binding a kind twice is a
// configuration defect.
func (r *Registry) Register(handler Handler) error {
	if _, exists := r.handlers[handler.Kind()]; exists {
		return transfer.Fatal("command handler for kind %q already registered", handler.Kind())
	}
	r.handlers[handler.Kind()] = handler
	return nil
}

// Dispatch routes the command to its handler.
func (r *Registry) Dispatch(ctx context.Context, cmd transfer.Command) error {
	handler, ok := r.handlers[cmd.Kind()]
	if !ok {
		return transfer.Fatal("unhandled command kind %q", cmd.Kind())
	}
	return handler.Handle(ctx, cmd)
}
