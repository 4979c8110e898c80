package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDefinition struct {
	id      string
	process string
}

func (d stubDefinition) ID() string                { return d.id }
func (d stubDefinition) TransferProcessID() string { return d.process }
func (d stubDefinition) Kind() string              { return "stub" }

type stubResource struct {
	id         string
	definition string
	process    string
}

func (r stubResource) ID() string                   { return r.id }
func (r stubResource) ResourceDefinitionID() string { return r.definition }
func (r stubResource) TransferProcessID() string    { return r.process }
func (r stubResource) Kind() string                 { return "stub" }
func (r stubResource) HasToken() bool               { return false }

func newTestProcess(t *testing.T) *TransferProcess {
	t.Helper()
	process, err := NewProcess("tp-1", TypeConsumer, DataRequest{
		ID:              "req-1",
		AssetID:         "asset-1",
		DataDestination: DataAddress{Type: "AmazonS3"},
	})
	require.NoError(t, err)
	return process
}

func TestNewProcessValidation(t *testing.T) {
	_, err := NewProcess("", TypeConsumer, DataRequest{ID: "req"})
	assert.True(t, IsBadRequest(err))

	_, err = NewProcess("tp", TypeConsumer, DataRequest{})
	assert.True(t, IsBadRequest(err))
}

func TestHappyPathTransitions(t *testing.T) {
	process := newTestProcess(t)
	assert.Equal(t, StateInitial, process.State)
	initialCount := process.StateCount

	require.NoError(t, process.TransitionProvisioning(nil))
	require.NoError(t, process.TransitionProvisioned())
	require.NoError(t, process.TransitionRequested())
	require.NoError(t, process.TransitionInProgress())
	require.NoError(t, process.TransitionCompleted())

	assert.Equal(t, StateCompleted, process.State)
	assert.Equal(t, initialCount+5, process.StateCount)
	assert.True(t, process.State.Terminal())
}

func TestIllegalTransitionsRejected(t *testing.T) {
	process := newTestProcess(t)

	err := process.TransitionInProgress()
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StateInitial, process.State, "state must not change on rejection")

	require.NoError(t, process.TransitionProvisioning(nil))
	assert.ErrorIs(t, process.TransitionRequested(), ErrIllegalTransition)
	assert.ErrorIs(t, process.TransitionCompleted(), ErrIllegalTransition)
}

func TestProvisioningReentrant(t *testing.T) {
	process := newTestProcess(t)
	require.NoError(t, process.TransitionProvisioning(nil))
	// Failed dispatch attempts re-enter the same state.
	assert.NoError(t, process.TransitionProvisioning(nil))
}

func TestTerminalStatesAreFinal(t *testing.T) {
	process := newTestProcess(t)
	require.NoError(t, process.TransitionCancelled())

	assert.ErrorIs(t, process.TransitionCancelled(), ErrIllegalTransition)
	assert.ErrorIs(t, process.TransitionDeprovisioning(), ErrIllegalTransition)
	assert.ErrorIs(t, process.TransitionError("late"), ErrIllegalTransition)
	assert.Empty(t, process.ErrorDetail)
}

func TestTransitionErrorRecordsDetail(t *testing.T) {
	process := newTestProcess(t)
	require.NoError(t, process.TransitionError("bucket exploded"))
	assert.Equal(t, StateError, process.State)
	assert.Equal(t, "bucket exploded", process.ErrorDetail)
}

func TestProvisionComplete(t *testing.T) {
	process := newTestProcess(t)
	definitions := []ResourceDefinition{
		stubDefinition{id: "def-1", process: process.ID},
		stubDefinition{id: "def-2", process: process.ID},
	}
	require.NoError(t, process.TransitionProvisioning(definitions))
	assert.False(t, process.ProvisionComplete())

	process.AddProvisionedResource(stubResource{id: "res-1", definition: "def-1", process: process.ID})
	assert.False(t, process.ProvisionComplete())

	process.AddProvisionedResource(stubResource{id: "res-2", definition: "def-2", process: process.ID})
	assert.True(t, process.ProvisionComplete())
}

func TestResourceRelease(t *testing.T) {
	process := newTestProcess(t)
	process.AddProvisionedResource(stubResource{id: "res-1", definition: "def-1", process: process.ID})
	process.AddProvisionedResource(stubResource{id: "res-2", definition: "def-2", process: process.ID})

	assert.False(t, process.ResourcesReleased())
	assert.Len(t, process.PendingResources(), 2)

	process.AddDeprovisionedResource(DeprovisionedResource{ProvisionedResourceID: "res-1"})
	assert.Len(t, process.PendingResources(), 1)

	// Redelivered outcome for the same resource collapses.
	count := process.StateCount
	process.AddDeprovisionedResource(DeprovisionedResource{ProvisionedResourceID: "res-1"})
	assert.Len(t, process.DeprovisionedResources, 1)
	assert.Equal(t, count+1, process.StateCount)

	process.AddDeprovisionedResource(DeprovisionedResource{ProvisionedResourceID: "res-2"})
	assert.True(t, process.ResourcesReleased())
	assert.Empty(t, process.PendingResources())
}

func TestMarkTransferCompleteIdempotent(t *testing.T) {
	process := newTestProcess(t)
	count := process.StateCount

	process.MarkTransferComplete()
	assert.True(t, process.TransferComplete)
	assert.Equal(t, count+1, process.StateCount)

	process.MarkTransferComplete()
	assert.Equal(t, count+1, process.StateCount)
}

func TestCopyIsolatesSlices(t *testing.T) {
	process := newTestProcess(t)
	process.AddProvisionedResource(stubResource{id: "res-1", definition: "def-1", process: process.ID})

	cp := process.Copy()
	cp.AddProvisionedResource(stubResource{id: "res-2", definition: "def-2", process: process.ID})
	cp.DataRequest.DataDestination.Properties = map[string]string{"bucketName": "other"}

	assert.Len(t, process.ProvisionedResources, 1)
	assert.Empty(t, process.DataRequest.DataDestination.Properties)
}
