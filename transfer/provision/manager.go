package provision

import (
	"context"
	"sync"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// Manager dispatches a resource manifest across the registered provisioners
// and aggregates their asynchronous results. Exactly one provisioner must
// claim each definition; zero or multiple claims are configuration defects
// and are surfaced as fatal errors, never resolved silently.
type Manager struct {
	provisioners []Provisioner
	monitor      monitor.Monitor
}

// NewManager creates a manager with no registered provisioners.
func NewManager(mon monitor.Monitor) *Manager {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &Manager{monitor: mon}
}

// Register adds a provisioner. Registration happens during wiring, before
// any dispatch; the manager is read-only afterwards.
func (m *Manager) Register(provisioner Provisioner) {
	m.provisioners = append(m.provisioners, provisioner)
}

// Provision routes every definition of the manifest to its provisioner and
// returns a channel delivering one Result per definition. The channel closes
// once all results arrived. A routing defect fails fast before any
// provisioner is invoked.
func (m *Manager) Provision(ctx context.Context, manifest []transfer.ResourceDefinition, policy transfer.Policy) (<-chan Result, error) {
	routed := make([]Provisioner, len(manifest))
	for i, definition := range manifest {
		provisioner, err := m.route(definition)
		if err != nil {
			return nil, err
		}
		routed[i] = provisioner
	}

	results := make(chan Result, len(manifest))
	var wg sync.WaitGroup
	for i, definition := range manifest {
		wg.Add(1)
		go func(p Provisioner, d transfer.ResourceDefinition) {
			defer wg.Done()
			results <- <-p.Provision(ctx, d, policy)
		}(routed[i], definition)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results, nil
}

// Deprovision routes every resource to the provisioner that created its kind
// and returns a channel delivering one DeprovisionOutcome per resource.
func (m *Manager) Deprovision(ctx context.Context, resources []transfer.ProvisionedResource, policy transfer.Policy) (<-chan DeprovisionOutcome, error) {
	routed := make([]Provisioner, len(resources))
	for i, resource := range resources {
		provisioner, err := m.routeDeprovision(resource)
		if err != nil {
			return nil, err
		}
		routed[i] = provisioner
	}

	outcomes := make(chan DeprovisionOutcome, len(resources))
	var wg sync.WaitGroup
	for i, resource := range resources {
		wg.Add(1)
		go func(p Provisioner, r transfer.ProvisionedResource) {
			defer wg.Done()
			outcomes <- <-p.Deprovision(ctx, r, policy)
		}(routed[i], resource)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()
	return outcomes, nil
}

func (m *Manager) route(definition transfer.ResourceDefinition) (Provisioner, error) {
	var match Provisioner
	for _, p := range m.provisioners {
		if !p.CanProvision(definition) {
			continue
		}
		if match != nil {
			return nil, transfer.Fatal("multiple provisioners claim resource definition %s of kind %s", definition.ID(), definition.Kind())
		}
		match = p
	}
	if match == nil {
		return nil, transfer.Fatal("no provisioner registered for resource kind %s", definition.Kind())
	}
	return match, nil
}

func (m *Manager) routeDeprovision(resource transfer.ProvisionedResource) (Provisioner, error) {
	var match Provisioner
	for _, p := range m.provisioners {
		if !p.CanDeprovision(resource) {
			continue
		}
		if match != nil {
			return nil, transfer.Fatal("multiple provisioners claim provisioned resource %s of kind %s", resource.ID(), resource.Kind())
		}
		match = p
	}
	if match == nil {
		return nil, transfer.Fatal("no provisioner registered for provisioned resource kind %s", resource.Kind())
	}
	return match, nil
}
