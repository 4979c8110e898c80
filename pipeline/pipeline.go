// Package pipeline provides the byte-moving abstraction of the connector: a
// DataSource yields parts, a DataSink consumes them. The package is
// format-agnostic; a part is an opaque byte stream. Concrete bindings such
// as the S3 source and sink live in their own packages and register
// factories here.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// Part is a single unit of transferable data exposing a single-use readable
// byte stream.
type Part interface {
	// Name identifies the part, typically the object key.
	Name() string

	// Size returns the part size in bytes, or a negative value when
	// unknown.
	Size() int64

	// Open returns the part's byte stream. The stream may be opened once;
	// the caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// DataSource produces the finite sequence of parts of one transfer.
type DataSource interface {
	// Parts enumerates the parts to move.
	Parts(ctx context.Context) ([]Part, error)

	// Close releases source-held resources.
	Close() error
}

// DataSink consumes all parts of a source and reports success or failure.
type DataSink interface {
	// Transfer moves every part from the source into the sink.
	Transfer(ctx context.Context, source DataSource) error
}

// DataSourceFactory creates sources for data flow requests it can handle.
type DataSourceFactory interface {
	// CanHandle reports whether the factory serves the request's source
	// address type.
	CanHandle(request transfer.DataFlowRequest) bool

	// Validate checks the request's source address without side effects.
	Validate(request transfer.DataFlowRequest) error

	// CreateSource builds a source for a validated request.
	CreateSource(ctx context.Context, request transfer.DataFlowRequest) (DataSource, error)
}

// DataSinkFactory creates sinks for data flow requests it can handle.
type DataSinkFactory interface {
	// CanHandle reports whether the factory serves the request's
	// destination address type.
	CanHandle(request transfer.DataFlowRequest) bool

	// Validate checks the request's destination address without side
	// effects.
	Validate(request transfer.DataFlowRequest) error

	// CreateSink builds a sink for a validated request.
	CreateSink(ctx context.Context, request transfer.DataFlowRequest) (DataSink, error)
}

// Service resolves the factories for a data flow request and runs the
// transfer. It is the single entry point the process manager uses to move
// bytes.
type Service struct {
	sourceFactories []DataSourceFactory
	sinkFactories   []DataSinkFactory
	monitor         monitor.Monitor
}

// NewService creates a pipeline service with no registered factories.
func NewService(mon monitor.Monitor) *Service {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &Service{monitor: mon}
}

// RegisterSourceFactory adds a source factory during wiring.
func (s *Service) RegisterSourceFactory(factory DataSourceFactory) {
	s.sourceFactories = append(s.sourceFactories, factory)
}

// RegisterSinkFactory adds a sink factory during wiring.
func (s *Service) RegisterSinkFactory(factory DataSinkFactory) {
	s.sinkFactories = append(s.sinkFactories, factory)
}

// CanHandle reports whether both ends of the request have a registered
// factory.
func (s *Service) CanHandle(request transfer.DataFlowRequest) bool {
	return s.sourceFactory(request) != nil && s.sinkFactory(request) != nil
}

// Validate checks both addresses of the request against their factories.
func (s *Service) Validate(request transfer.DataFlowRequest) error {
	sourceFactory := s.sourceFactory(request)
	if sourceFactory == nil {
		return transfer.BadRequest("no data source factory for address type %s", request.SourceAddress.Type)
	}
	sinkFactory := s.sinkFactory(request)
	if sinkFactory == nil {
		return transfer.BadRequest("no data sink factory for address type %s", request.DestinationAddress.Type)
	}
	if err := sourceFactory.Validate(request); err != nil {
		return err
	}
	return sinkFactory.Validate(request)
}

// Transfer resolves factories, builds the source and sink and moves the
// data. The source is closed before returning.
func (s *Service) Transfer(ctx context.Context, request transfer.DataFlowRequest) error {
	if err := s.Validate(request); err != nil {
		return err
	}

	source, err := s.sourceFactory(request).CreateSource(ctx, request)
	if err != nil {
		return fmt.Errorf("creating data source for %s: %w", request.ID, err)
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			s.monitor.Debug("closing data source", "request", request.ID, "error", closeErr)
		}
	}()

	sink, err := s.sinkFactory(request).CreateSink(ctx, request)
	if err != nil {
		return fmt.Errorf("creating data sink for %s: %w", request.ID, err)
	}

	return sink.Transfer(ctx, source)
}

func (s *Service) sourceFactory(request transfer.DataFlowRequest) DataSourceFactory {
	for _, factory := range s.sourceFactories {
		if factory.CanHandle(request) {
			return factory
		}
	}
	return nil
}

func (s *Service) sinkFactory(request transfer.DataFlowRequest) DataSinkFactory {
	for _, factory := range s.sinkFactories {
		if factory.CanHandle(request) {
			return factory
		}
	}
	return nil
}
