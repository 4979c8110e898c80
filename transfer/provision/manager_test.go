package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

type fakeDefinition struct {
	id   string
	kind string
}

func (d fakeDefinition) ID() string                { return d.id }
func (d fakeDefinition) TransferProcessID() string { return "tp-1" }
func (d fakeDefinition) Kind() string              { return d.kind }

type fakeResource struct {
	id   string
	kind string
}

func (r fakeResource) ID() string                   { return r.id }
func (r fakeResource) ResourceDefinitionID() string { return "def-" + r.id }
func (r fakeResource) TransferProcessID() string    { return "tp-1" }
func (r fakeResource) Kind() string                 { return r.kind }
func (r fakeResource) HasToken() bool               { return false }

type fakeProvisioner struct {
	kind        string
	provisionFn func(definition transfer.ResourceDefinition) Result
	releaseFn   func(resource transfer.ProvisionedResource) DeprovisionOutcome
}

func (p *fakeProvisioner) CanProvision(d transfer.ResourceDefinition) bool {
	return d.Kind() == p.kind
}

func (p *fakeProvisioner) CanDeprovision(r transfer.ProvisionedResource) bool {
	return r.Kind() == p.kind
}

func (p *fakeProvisioner) Provision(_ context.Context, d transfer.ResourceDefinition, _ transfer.Policy) <-chan Result {
	out := make(chan Result, 1)
	if p.provisionFn != nil {
		out <- p.provisionFn(d)
	} else {
		out <- Result{DefinitionID: d.ID(), Response: &transfer.ProvisionResponse{
			Resource: fakeResource{id: d.ID(), kind: p.kind},
		}}
	}
	close(out)
	return out
}

func (p *fakeProvisioner) Deprovision(_ context.Context, r transfer.ProvisionedResource, _ transfer.Policy) <-chan DeprovisionOutcome {
	out := make(chan DeprovisionOutcome, 1)
	if p.releaseFn != nil {
		out <- p.releaseFn(r)
	} else {
		out <- DeprovisionOutcome{
			ResourceID: r.ID(),
			Resource:   transfer.DeprovisionedResource{ProvisionedResourceID: r.ID()},
		}
	}
	close(out)
	return out
}

func TestProvisionRoutesByKind(t *testing.T) {
	m := NewManager(nil)
	m.Register(&fakeProvisioner{kind: "bucket"})
	m.Register(&fakeProvisioner{kind: "queue"})

	manifest := []transfer.ResourceDefinition{
		fakeDefinition{id: "d1", kind: "bucket"},
		fakeDefinition{id: "d2", kind: "queue"},
	}
	results, err := m.Provision(context.Background(), manifest, transfer.Policy{})
	require.NoError(t, err)

	received := map[string]bool{}
	for result := range results {
		require.NoError(t, result.Err)
		received[result.DefinitionID] = true
	}
	assert.Len(t, received, 2)
	assert.True(t, received["d1"] && received["d2"])
}

func TestProvisionFailsFastWithoutProvisioner(t *testing.T) {
	m := NewManager(nil)
	m.Register(&fakeProvisioner{kind: "bucket"})

	invoked := false
	m.Register(&fakeProvisioner{kind: "other", provisionFn: func(d transfer.ResourceDefinition) Result {
		invoked = true
		return Result{DefinitionID: d.ID()}
	}})

	_, err := m.Provision(context.Background(), []transfer.ResourceDefinition{
		fakeDefinition{id: "d1", kind: "bucket"},
		fakeDefinition{id: "d2", kind: "unclaimed"},
	}, transfer.Policy{})

	require.Error(t, err)
	assert.True(t, transfer.IsFatal(err))
	assert.False(t, invoked, "no provisioner may run when routing fails")
}

func TestProvisionRejectsAmbiguousClaims(t *testing.T) {
	m := NewManager(nil)
	m.Register(&fakeProvisioner{kind: "bucket"})
	m.Register(&fakeProvisioner{kind: "bucket"})

	_, err := m.Provision(context.Background(), []transfer.ResourceDefinition{
		fakeDefinition{id: "d1", kind: "bucket"},
	}, transfer.Policy{})
	require.Error(t, err)
	assert.True(t, transfer.IsFatal(err))
}

func TestProvisionDeliversFailuresAsResults(t *testing.T) {
	boom := errors.New("service down")
	m := NewManager(nil)
	m.Register(&fakeProvisioner{kind: "bucket", provisionFn: func(d transfer.ResourceDefinition) Result {
		return Result{DefinitionID: d.ID(), Err: transfer.Retryable(boom)}
	}})

	results, err := m.Provision(context.Background(), []transfer.ResourceDefinition{
		fakeDefinition{id: "d1", kind: "bucket"},
	}, transfer.Policy{})
	require.NoError(t, err)

	result := <-results
	require.ErrorIs(t, result.Err, boom)
	assert.True(t, transfer.IsRetryable(result.Err))

	_, open := <-results
	assert.False(t, open, "channel closes after the last result")
}

func TestDeprovisionRoutesEveryResource(t *testing.T) {
	m := NewManager(nil)
	m.Register(&fakeProvisioner{kind: "bucket"})

	outcomes, err := m.Deprovision(context.Background(), []transfer.ProvisionedResource{
		fakeResource{id: "r1", kind: "bucket"},
		fakeResource{id: "r2", kind: "bucket"},
	}, transfer.Policy{})
	require.NoError(t, err)

	released := map[string]bool{}
	for outcome := range outcomes {
		require.NoError(t, outcome.Err)
		released[outcome.Resource.ProvisionedResourceID] = true
	}
	assert.Len(t, released, 2)
}

func TestManifestGeneratorSkipsUnmanagedRequests(t *testing.T) {
	g := NewManifestGenerator()
	g.Register(generatorFunc(func(process *transfer.TransferProcess, _ transfer.Policy) (transfer.ResourceDefinition, bool) {
		return fakeDefinition{id: "d1", kind: "bucket"}, true
	}))

	process, err := transfer.NewProcess("tp-1", transfer.TypeConsumer, transfer.DataRequest{
		ID: "req-1", ManagedResources: true,
	})
	require.NoError(t, err)
	assert.Len(t, g.GenerateConsumerManifest(process, transfer.Policy{}), 1)

	process.DataRequest.ManagedResources = false
	assert.Empty(t, g.GenerateConsumerManifest(process, transfer.Policy{}))
}

type generatorFunc func(process *transfer.TransferProcess, policy transfer.Policy) (transfer.ResourceDefinition, bool)

func (f generatorFunc) Generate(process *transfer.TransferProcess, policy transfer.Policy) (transfer.ResourceDefinition, bool) {
	return f(process, policy)
}
