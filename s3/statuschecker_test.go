package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

type foreignResource struct{}

func (foreignResource) ID() string                   { return "other-1" }
func (foreignResource) ResourceDefinitionID() string { return "def-1" }
func (foreignResource) TransferProcessID() string    { return "tp-1" }
func (foreignResource) Kind() string                 { return "azure-container" }
func (foreignResource) HasToken() bool               { return false }

func checkerProcess(t *testing.T, properties map[string]string) *transfer.TransferProcess {
	t.Helper()
	process, err := transfer.NewProcess("tp-1", transfer.TypeConsumer, transfer.DataRequest{
		ID:              "req-1",
		DataDestination: transfer.DataAddress{Type: TypeAmazonS3, Properties: properties},
	})
	require.NoError(t, err)
	return process
}

func listingWith(keys ...string) func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	return func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
		contents := make([]s3types.Object, len(keys))
		for i, key := range keys {
			contents[i] = s3types.Object{Key: aws.String(key)}
		}
		return &awss3.ListObjectsV2Output{Contents: contents}, nil
	}
}

func TestIsCompleteDetectsMarker(t *testing.T) {
	provider := newMockProvider()
	provider.s3.listObjectsV2Func = listingWith("asset-part-1", "asset-part-2", "asset.complete")

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, map[string]string{PropertyBucketName: "dest"})

	complete, err := checker.IsComplete(context.Background(), process, nil)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestIsCompleteWithoutMarker(t *testing.T) {
	provider := newMockProvider()
	provider.s3.listObjectsV2Func = listingWith("asset-part-1", "asset-part-2")

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, map[string]string{PropertyBucketName: "dest"})

	complete, err := checker.IsComplete(context.Background(), process, nil)
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestIsCompleteUsesProvisionedResource(t *testing.T) {
	provider := newMockProvider()
	var listedBucket string
	provider.s3.listObjectsV2Func = func(_ context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
		listedBucket = aws.ToString(params.Bucket)
		return &awss3.ListObjectsV2Output{Contents: []s3types.Object{{Key: aws.String("x.complete")}}}, nil
	}

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, nil)

	complete, err := checker.IsComplete(context.Background(), process, []transfer.ProvisionedResource{
		&BucketProvisionedResource{ResourceID: "res-1", BucketName: "provisioned-bucket"},
	})
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, "provisioned-bucket", listedBucket)
}

func TestIsCompleteMissingBucketResourceFails(t *testing.T) {
	provider := newMockProvider()
	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, nil)

	_, err := checker.IsComplete(context.Background(), process, []transfer.ProvisionedResource{foreignResource{}})
	require.Error(t, err)
	assert.True(t, transfer.IsFatal(err))
}

func TestIsCompleteTreatsMissingBucketAsPending(t *testing.T) {
	provider := newMockProvider()
	provider.s3.listObjectsV2Func = func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
		return nil, &s3types.NoSuchBucket{}
	}

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, map[string]string{PropertyBucketName: "dest"})

	complete, err := checker.IsComplete(context.Background(), process, nil)
	assert.NoError(t, err, "an absent bucket means the transfer has not produced anything yet")
	assert.False(t, complete)
}

func TestIsCompleteTreatsServiceErrorAsPending(t *testing.T) {
	provider := newMockProvider()
	provider.s3.listObjectsV2Func = func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
		return nil, &smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}
	}

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, map[string]string{PropertyBucketName: "dest"})

	complete, err := checker.IsComplete(context.Background(), process, nil)
	assert.NoError(t, err)
	assert.False(t, complete)
}

func TestIsCompleteWithoutBucketNameFails(t *testing.T) {
	provider := newMockProvider()
	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, nil)

	_, err := checker.IsComplete(context.Background(), process, nil)
	assert.True(t, transfer.IsFatal(err))
}

func TestIsCompletePaginates(t *testing.T) {
	provider := newMockProvider()
	calls := 0
	provider.s3.listObjectsV2Func = func(context.Context, *awss3.ListObjectsV2Input, ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
		calls++
		if calls == 1 {
			return &awss3.ListObjectsV2Output{
				Contents:              []s3types.Object{{Key: aws.String("part-1")}},
				IsTruncated:           aws.Bool(true),
				NextContinuationToken: aws.String("next"),
			}, nil
		}
		return &awss3.ListObjectsV2Output{
			Contents: []s3types.Object{{Key: aws.String("asset.complete")}},
		}, nil
	}

	checker := NewBucketStatusChecker(provider, nil)
	process := checkerProcess(t, map[string]string{PropertyBucketName: "dest"})

	complete, err := checker.IsComplete(context.Background(), process, nil)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 2, calls)
}
