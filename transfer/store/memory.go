package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/query"
)

// InMemory is a Store keeping processes in a map guarded by a mutex. Stored
// and returned processes are deep copies, so callers can mutate their copy
// freely and racing writers are resolved by the version check alone.
type InMemory struct {
	mu        sync.RWMutex
	processes map[string]*transfer.TransferProcess
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{processes: map[string]*transfer.TransferProcess{}}
}

// Find implements Store.
func (s *InMemory) Find(_ context.Context, id string) (*transfer.TransferProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	process, ok := s.processes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return process.Copy(), nil
}

// FindAll implements Store.
func (s *InMemory) FindAll(_ context.Context, spec query.Spec) ([]*transfer.TransferProcess, error) {
	s.mu.RLock()
	matched := make([]*transfer.TransferProcess, 0, len(s.processes))
	for _, process := range s.processes {
		if query.MatchesAll(process, spec) {
			matched = append(matched, process.Copy())
		}
	}
	s.mu.RUnlock()

	sortProcesses(matched, spec)
	return page(matched, spec), nil
}

// Save implements Store.
func (s *InMemory) Save(_ context.Context, process *transfer.TransferProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.processes[process.ID]; ok && process.StateCount <= existing.StateCount {
		return fmt.Errorf("%w: process %s at version %d, incoming %d",
			ErrStaleVersion, process.ID, existing.StateCount, process.StateCount)
	}
	s.processes[process.ID] = process.Copy()
	return nil
}

func sortProcesses(processes []*transfer.TransferProcess, spec query.Spec) {
	field := spec.SortField
	if field == "" {
		field = "id"
	}
	sort.SliceStable(processes, func(i, j int) bool {
		left := first(query.LookupAll(processes[i], field))
		right := first(query.LookupAll(processes[j], field))
		if spec.SortOrder == query.SortDescending {
			return right < left
		}
		return left < right
	})
}

func first(values []any) string {
	if len(values) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", values[0])
}

func page(processes []*transfer.TransferProcess, spec query.Spec) []*transfer.TransferProcess {
	if spec.Offset > 0 {
		if spec.Offset >= len(processes) {
			return nil
		}
		processes = processes[spec.Offset:]
	}
	if spec.Limit > 0 && spec.Limit < len(processes) {
		processes = processes[:spec.Limit]
	}
	return processes
}
