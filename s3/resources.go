package s3

import (
	"github.com/google/uuid"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// ResourceKindBucket tags bucket resources for provisioner dispatch.
const ResourceKindBucket = "s3-bucket"

// BucketResourceDefinition asks for a destination bucket with scoped write
// credentials.
type BucketResourceDefinition struct {
	// DefinitionID is the stable definition identifier.
	DefinitionID string `json:"id"`

	// ProcessID is the owning transfer process.
	ProcessID string `json:"transferProcessId"`

	// Region is the bucket region.
	Region string `json:"region"`

	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// BucketName is the bucket to create.
	BucketName string `json:"bucketName"`
}

// ID implements transfer.ResourceDefinition.
func (d *BucketResourceDefinition) ID() string { return d.DefinitionID }

// TransferProcessID implements transfer.ResourceDefinition.
func (d *BucketResourceDefinition) TransferProcessID() string { return d.ProcessID }

// Kind implements transfer.ResourceDefinition.
func (d *BucketResourceDefinition) Kind() string { return ResourceKindBucket }

// BucketProvisionedResource is a provisioned destination bucket plus the
// per-transfer role granting access to it. The access token minted by
// assuming the role lives in the vault under the resource's key name.
type BucketProvisionedResource struct {
	// ResourceID is the stable resource identifier, also the vault key of
	// the access token.
	ResourceID string `json:"id"`

	// DefinitionID links back to the satisfied definition.
	DefinitionID string `json:"resourceDefinitionId"`

	// ProcessID is the owning transfer process.
	ProcessID string `json:"transferProcessId"`

	// Region is the bucket region.
	Region string `json:"region"`

	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// BucketName is the provisioned bucket.
	BucketName string `json:"bucketName"`

	// RoleName is the per-transfer role scoped to the bucket. Empty when
	// the store has no IAM surface.
	RoleName string `json:"roleName,omitempty"`
}

// ID implements transfer.ProvisionedResource.
func (r *BucketProvisionedResource) ID() string { return r.ResourceID }

// ResourceDefinitionID implements transfer.ProvisionedResource.
func (r *BucketProvisionedResource) ResourceDefinitionID() string { return r.DefinitionID }

// TransferProcessID implements transfer.ProvisionedResource.
func (r *BucketProvisionedResource) TransferProcessID() string { return r.ProcessID }

// Kind implements transfer.ProvisionedResource.
func (r *BucketProvisionedResource) Kind() string { return ResourceKindBucket }

// HasToken implements transfer.ProvisionedResource.
func (r *BucketProvisionedResource) HasToken() bool { return true }

// DataAddress implements transfer.DataDestinationResource. The key name of
// the address points at the vault entry holding the access token.
func (r *BucketProvisionedResource) DataAddress() transfer.DataAddress {
	properties := map[string]string{
		PropertyRegion:           r.Region,
		PropertyBucketName:       r.BucketName,
		transfer.KeyNameProperty: r.ResourceID,
	}
	if r.Endpoint != "" {
		properties[PropertyEndpoint] = r.Endpoint
	}
	return transfer.DataAddress{Type: TypeAmazonS3, Properties: properties}
}

// ConsumerResourceGenerator turns AmazonS3 destinations into bucket resource
// definitions for the provisioning manifest.
type ConsumerResourceGenerator struct{}

// NewConsumerResourceGenerator creates the generator.
func NewConsumerResourceGenerator() *ConsumerResourceGenerator {
	return &ConsumerResourceGenerator{}
}

// Generate implements provision.Generator. A destination without a bucket
// name gets one derived from the process id.
func (g *ConsumerResourceGenerator) Generate(process *transfer.TransferProcess, _ transfer.Policy) (transfer.ResourceDefinition, bool) {
	destination := process.DataRequest.DataDestination
	if destination.Type != TypeAmazonS3 {
		return nil, false
	}

	bucket := destination.Property(PropertyBucketName)
	if bucket == "" {
		bucket = "transfer-" + process.ID
	}
	region := destination.Property(PropertyRegion)
	if region == "" {
		region = DefaultRegion
	}

	return &BucketResourceDefinition{
		DefinitionID: uuid.NewString(),
		ProcessID:    process.ID,
		Region:       region,
		Endpoint:     destination.Property(PropertyEndpoint),
		BucketName:   bucket,
	}, true
}
