package pipeline

import (
	"context"
	"sync"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
)

// PartSink writes individual parts and emits the completion marker once all
// parts landed. Concrete sinks implement this and are wrapped in a
// ParallelSink, which supplies the fan-out mechanics.
//
// TransferPart is called concurrently and must be safe for concurrent use.
type PartSink interface {
	// TransferPart writes a single part.
	TransferPart(ctx context.Context, part Part) error

	// Complete writes the completion marker. It is only called after every
	// part succeeded; a failed marker write fails the whole transfer.
	Complete(ctx context.Context) error
}

// ParallelSink is the DataSink strategy that submits each part as an
// independent unit of work to a bounded worker pool. All in-flight parts are
// allowed to finish even when one fails, so no streams leak; the first
// failure becomes the overall result. The completion marker is written only
// when every part succeeded.
type ParallelSink struct {
	sink        PartSink
	concurrency int
	requestID   string
	monitor     monitor.Monitor
}

// NewParallelSink wraps a part sink. concurrency bounds the worker pool and
// defaults to 5 when not positive.
func NewParallelSink(sink PartSink, concurrency int, requestID string, mon monitor.Monitor) *ParallelSink {
	if concurrency <= 0 {
		concurrency = 5
	}
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &ParallelSink{
		sink:        sink,
		concurrency: concurrency,
		requestID:   requestID,
		monitor:     mon,
	}
}

// Transfer implements DataSink.
func (s *ParallelSink) Transfer(ctx context.Context, source DataSource) error {
	parts, err := source.Parts(ctx)
	if err != nil {
		return err
	}

	results := make(chan error, len(parts))
	semaphore := make(chan struct{}, s.concurrency)

	var wg sync.WaitGroup
	for _, part := range parts {
		wg.Add(1)
		go func(part Part) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results <- s.sink.TransferPart(ctx, part)
		}(part)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Drain everything so in-flight parts finish before returning, then
	// report the first failure.
	var firstErr error
	for err := range results {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.monitor.Severe("part transfer failed", "request", s.requestID, "error", firstErr)
		return firstErr
	}

	if err := s.sink.Complete(ctx); err != nil {
		s.monitor.Severe("writing completion marker failed", "request", s.requestID, "error", err)
		return err
	}
	s.monitor.Debug("transfer complete", "request", s.requestID, "parts", len(parts))
	return nil
}
