package s3

// TypeAmazonS3 is the DataAddress type served by this binding.
const TypeAmazonS3 = "AmazonS3"

// Well-known DataAddress property names of the AmazonS3 type.
const (
	// PropertyRegion is the bucket region.
	PropertyRegion = "region"

	// PropertyEndpoint overrides the service endpoint for S3-compatible
	// stores. Empty means AWS S3.
	PropertyEndpoint = "endpoint"

	// PropertyBucketName is the bucket holding the data.
	PropertyBucketName = "bucketName"

	// PropertyAssetName is the object key, or key prefix, of the asset.
	PropertyAssetName = "assetName"

	// PropertyAccessKeyID embeds a static access key in the address. Used
	// only when no vault key is set.
	PropertyAccessKeyID = "accessKeyId"

	// PropertySecretAccessKey embeds the matching secret key.
	PropertySecretAccessKey = "secretAccessKey"
)

// CompletionMarkerSuffix is appended to the asset name to form the
// zero-length object that signals a finished transfer.
const CompletionMarkerSuffix = ".complete"

// DefaultRegion is assumed when an address carries no region property.
const DefaultRegion = "us-east-1"
