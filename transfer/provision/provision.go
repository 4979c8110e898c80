// Package provision defines the pluggable provisioning strategy interface
// and the manager that routes resource manifests across registered
// provisioners.
package provision

import (
	"context"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// Result is the outcome of provisioning a single resource definition. A
// failed provisioning delivers Err instead of a Response; it is never an
// unhandled fault. Err marked with transfer.Retryable leaves the owning
// process retryable, anything else is fatal.
type Result struct {
	// DefinitionID identifies the definition this result answers.
	DefinitionID string

	// Response carries the provisioned resource and its secret token on
	// success.
	Response *transfer.ProvisionResponse

	// Err is set on failure.
	Err error
}

// DeprovisionOutcome is the outcome of releasing a single provisioned
// resource.
type DeprovisionOutcome struct {
	// ResourceID identifies the provisioned resource this outcome answers.
	ResourceID string

	// Resource records the release on success.
	Resource transfer.DeprovisionedResource

	// Err is set on failure.
	Err error
}

// Provisioner turns a resource definition into a provisioned resource
// asynchronously, and reverses it. One implementation exists per resource
// kind; implementations match by the definition's kind tag.
type Provisioner interface {
	// CanProvision reports whether this provisioner handles the
	// definition's resource kind.
	CanProvision(definition transfer.ResourceDefinition) bool

	// CanDeprovision reports whether this provisioner can release the
	// resource.
	CanDeprovision(resource transfer.ProvisionedResource) bool

	// Provision starts provisioning and returns a channel delivering
	// exactly one Result. Implementations must honor ctx cancellation.
	Provision(ctx context.Context, definition transfer.ResourceDefinition, policy transfer.Policy) <-chan Result

	// Deprovision starts releasing the resource and returns a channel
	// delivering exactly one DeprovisionOutcome. Releasing an
	// already-absent resource must succeed.
	Deprovision(ctx context.Context, resource transfer.ProvisionedResource, policy transfer.Policy) <-chan DeprovisionOutcome
}
