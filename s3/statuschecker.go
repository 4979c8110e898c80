package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// BucketStatusChecker reports a transfer as complete once any object whose
// key ends in the completion marker suffix exists in the destination bucket.
//
// A bucket that cannot be listed, including one that does not exist yet,
// counts as not complete rather than as a failure: the destination may
// simply not have been provisioned or written yet, and the poll repeats.
type BucketStatusChecker struct {
	clients ClientProvider
	monitor monitor.Monitor
}

// NewBucketStatusChecker creates the checker.
func NewBucketStatusChecker(clients ClientProvider, mon monitor.Monitor) *BucketStatusChecker {
	if mon == nil {
		mon = monitor.Noop{}
	}
	return &BucketStatusChecker{clients: clients, monitor: mon}
}

// IsComplete implements transfer.StatusChecker. When provisioned resources
// are supplied the bucket is taken from them; a resource list without a
// bucket resource is a wiring defect and fails the transfer. Without
// resources the bucket comes from the destination address.
func (c *BucketStatusChecker) IsComplete(ctx context.Context, process *transfer.TransferProcess, resources []transfer.ProvisionedResource) (bool, error) {
	var region, endpoint, bucket string

	if len(resources) > 0 {
		found := false
		for _, resource := range resources {
			if bucketResource, ok := resource.(*BucketProvisionedResource); ok {
				region = bucketResource.Region
				endpoint = bucketResource.Endpoint
				bucket = bucketResource.BucketName
				found = true
				break
			}
		}
		if !found {
			return false, transfer.Fatal("no bucket resource provisioned for process %s", process.ID)
		}
	} else {
		destination := process.DataRequest.DataDestination
		region = destination.Property(PropertyRegion)
		endpoint = destination.Property(PropertyEndpoint)
		bucket = destination.Property(PropertyBucketName)
		if bucket == "" {
			return false, transfer.Fatal("destination of process %s names no bucket", process.ID)
		}
	}

	client, err := c.clients.S3Client(ctx, region, endpoint, nil)
	if err != nil {
		return false, err
	}

	paginator := &awss3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	for {
		listing, err := client.ListObjectsV2(ctx, paginator)
		if err != nil {
			c.monitor.Debug("destination bucket not listable yet",
				"process", process.ID, "bucket", bucket, "error", err)
			return false, nil
		}
		for _, object := range listing.Contents {
			if strings.HasSuffix(aws.ToString(object.Key), CompletionMarkerSuffix) {
				return true, nil
			}
		}
		if listing.IsTruncated == nil || !*listing.IsTruncated {
			return false, nil
		}
		paginator.ContinuationToken = listing.NextContinuationToken
	}
}
