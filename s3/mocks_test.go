package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// mockS3API implements S3API with overridable behavior per call.
type mockS3API struct {
	createBucketFunc    func(ctx context.Context, params *awss3.CreateBucketInput, optFns ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error)
	deleteBucketFunc    func(ctx context.Context, params *awss3.DeleteBucketInput, optFns ...func(*awss3.Options)) (*awss3.DeleteBucketOutput, error)
	putObjectFunc       func(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	getObjectFunc       func(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	listObjectsV2Func   func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	deleteObjectsFunc   func(ctx context.Context, params *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
	createMultipartFunc func(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	uploadPartFunc      func(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
	completeFunc        func(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	abortFunc           func(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

func (m *mockS3API) CreateBucket(ctx context.Context, params *awss3.CreateBucketInput, optFns ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error) {
	if m.createBucketFunc != nil {
		return m.createBucketFunc(ctx, params, optFns...)
	}
	return &awss3.CreateBucketOutput{}, nil
}

func (m *mockS3API) DeleteBucket(ctx context.Context, params *awss3.DeleteBucketInput, optFns ...func(*awss3.Options)) (*awss3.DeleteBucketOutput, error) {
	if m.deleteBucketFunc != nil {
		return m.deleteBucketFunc(ctx, params, optFns...)
	}
	return &awss3.DeleteBucketOutput{}, nil
}

func (m *mockS3API) PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, params, optFns...)
	}
	return &awss3.PutObjectOutput{}, nil
}

func (m *mockS3API) GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("GetObject not implemented")
}

func (m *mockS3API) ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	if m.listObjectsV2Func != nil {
		return m.listObjectsV2Func(ctx, params, optFns...)
	}
	return &awss3.ListObjectsV2Output{}, nil
}

func (m *mockS3API) DeleteObjects(ctx context.Context, params *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error) {
	if m.deleteObjectsFunc != nil {
		return m.deleteObjectsFunc(ctx, params, optFns...)
	}
	return &awss3.DeleteObjectsOutput{}, nil
}

func (m *mockS3API) CreateMultipartUpload(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	if m.createMultipartFunc != nil {
		return m.createMultipartFunc(ctx, params, optFns...)
	}
	return &awss3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (m *mockS3API) UploadPart(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	if m.uploadPartFunc != nil {
		return m.uploadPartFunc(ctx, params, optFns...)
	}
	return &awss3.UploadPartOutput{ETag: aws.String("etag")}, nil
}

func (m *mockS3API) CompleteMultipartUpload(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, params, optFns...)
	}
	return &awss3.CompleteMultipartUploadOutput{}, nil
}

func (m *mockS3API) AbortMultipartUpload(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	if m.abortFunc != nil {
		return m.abortFunc(ctx, params, optFns...)
	}
	return &awss3.AbortMultipartUploadOutput{}, nil
}

// mockSTSAPI implements STSAPI.
type mockSTSAPI struct {
	callerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	assumeRoleFunc     func(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

func (m *mockSTSAPI) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.callerIdentityFunc != nil {
		return m.callerIdentityFunc(ctx, params, optFns...)
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String("arn:aws:iam::123456789012:user/connector")}, nil
}

func (m *mockSTSAPI) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	if m.assumeRoleFunc != nil {
		return m.assumeRoleFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("AssumeRole not implemented")
}

// mockIAMAPI implements IAMAPI.
type mockIAMAPI struct {
	createRoleFunc       func(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	getRoleFunc          func(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	putRolePolicyFunc    func(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	deleteRolePolicyFunc func(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	deleteRoleFunc       func(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

func (m *mockIAMAPI) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if m.createRoleFunc != nil {
		return m.createRoleFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("CreateRole not implemented")
}

func (m *mockIAMAPI) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if m.getRoleFunc != nil {
		return m.getRoleFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("GetRole not implemented")
}

func (m *mockIAMAPI) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	if m.putRolePolicyFunc != nil {
		return m.putRolePolicyFunc(ctx, params, optFns...)
	}
	return &iam.PutRolePolicyOutput{}, nil
}

func (m *mockIAMAPI) DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	if m.deleteRolePolicyFunc != nil {
		return m.deleteRolePolicyFunc(ctx, params, optFns...)
	}
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (m *mockIAMAPI) DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	if m.deleteRoleFunc != nil {
		return m.deleteRoleFunc(ctx, params, optFns...)
	}
	return &iam.DeleteRoleOutput{}, nil
}

// mockProvider hands out the mocks and records the last token used.
type mockProvider struct {
	s3  *mockS3API
	sts *mockSTSAPI
	iam *mockIAMAPI

	lastToken    *transfer.SecretToken
	lastEndpoint string
	credentials  aws.Credentials
}

func (p *mockProvider) S3Client(_ context.Context, _, endpoint string, token *transfer.SecretToken) (S3API, error) {
	p.lastEndpoint = endpoint
	p.lastToken = token
	return p.s3, nil
}

func (p *mockProvider) STSClient(context.Context, string) (STSAPI, error) { return p.sts, nil }

func (p *mockProvider) IAMClient(context.Context) (IAMAPI, error) { return p.iam, nil }

func (p *mockProvider) Credentials(context.Context) (aws.Credentials, error) {
	return p.credentials, nil
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		s3:  &mockS3API{},
		sts: &mockSTSAPI{},
		iam: &mockIAMAPI{},
		credentials: aws.Credentials{
			AccessKeyID:     "static-key",
			SecretAccessKey: "static-secret",
		},
	}
}
