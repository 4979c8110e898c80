package transfer

import "time"

// Policy is the opaque usage policy attached to a transfer. Policy evaluation
// is an external collaborator concern; provisioners receive the policy as-is.
type Policy map[string]any

// ResourceDefinition describes a single resource that must be provisioned
// before a transfer can run. Definitions are immutable once created and are
// consumed exactly once by the matching provisioner.
type ResourceDefinition interface {
	// ID is the stable identifier of the definition.
	ID() string

	// TransferProcessID is the owning transfer process.
	TransferProcessID() string

	// Kind tags the resource variant, e.g. s3.ResourceKindBucket. Dispatch
	// happens by matching this tag, never by type inspection.
	Kind() string
}

// ProvisionedResource is the result of successfully provisioning a
// ResourceDefinition. It belongs to the owning TransferProcess and is
// released by the same provisioner that created it.
type ProvisionedResource interface {
	// ID is the stable identifier of the provisioned resource.
	ID() string

	// ResourceDefinitionID links back to the definition this resource
	// satisfies.
	ResourceDefinitionID() string

	// TransferProcessID is the owning transfer process.
	TransferProcessID() string

	// Kind tags the resource variant; matches the definition's kind.
	Kind() string

	// HasToken reports whether an access token for the resource must be
	// resolved from the vault rather than being embedded in the resource.
	HasToken() bool
}

// DataDestinationResource is implemented by provisioned resources that stand
// in as the data destination of their transfer. When a provisioner returns
// one, the process manager replaces the request's destination address with
// the resource's address, so the data pipeline writes into the provisioned
// target.
type DataDestinationResource interface {
	ProvisionedResource

	// DataAddress is the destination address of the provisioned resource.
	// Its key name points at the vault entry holding the access token.
	DataAddress() DataAddress
}

// DeprovisionedResource records the outcome of releasing a provisioned
// resource. Releasing an already-absent resource is a success, not an error.
type DeprovisionedResource struct {
	// ProvisionedResourceID identifies the resource that was released.
	ProvisionedResourceID string `json:"provisionedResourceId"`

	// InError is true when teardown failed permanently.
	InError bool `json:"inError,omitempty"`

	// ErrorDetail is the operator-facing reason when InError is set.
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// SecretToken is a short-lived credential bundle produced by a provisioning
// pipeline. Tokens are stored in the vault, keyed by the resource they grant
// access to, and resolved by the data pipeline at transfer time.
type SecretToken struct {
	// AccessKeyID is the temporary access key.
	AccessKeyID string `json:"accessKeyId"`

	// SecretAccessKey is the temporary secret key.
	SecretAccessKey string `json:"secretAccessKey"`

	// SessionToken is the session component of the credentials.
	SessionToken string `json:"sessionToken,omitempty"`

	// Expiration is when the credentials stop working.
	Expiration time.Time `json:"expiration"`
}

// ProvisionResponse bundles a provisioned resource with the secret token
// minted for it. The token may be nil for resources without credentials.
type ProvisionResponse struct {
	Resource    ProvisionedResource
	SecretToken *SecretToken
}
