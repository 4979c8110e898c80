package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/transfer/provision"
)

const (
	defaultMaxRetries      = 10
	defaultSessionDuration = time.Hour

	rolePolicyName = "transfer-access"
)

const trustPolicyTemplate = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": %q},
    "Action": "sts:AssumeRole"
  }]
}`

const bucketPolicyTemplate = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Action": [
      "s3:GetObject",
      "s3:PutObject",
      "s3:DeleteObject",
      "s3:ListBucket",
      "s3:AbortMultipartUpload",
      "s3:ListMultipartUploadParts"
    ],
    "Resource": ["arn:aws:s3:::%[1]s", "arn:aws:s3:::%[1]s/*"]
  }]
}`

// ProvisionerOption configures a BucketProvisioner.
type ProvisionerOption func(*BucketProvisioner)

// WithMaxRetries bounds the retry attempts of each provisioning pipeline.
func WithMaxRetries(n uint64) ProvisionerOption {
	return func(p *BucketProvisioner) { p.maxRetries = n }
}

// WithSessionDuration sets the lifetime of minted transfer tokens.
func WithSessionDuration(d time.Duration) ProvisionerOption {
	return func(p *BucketProvisioner) { p.sessionDuration = d }
}

// BucketProvisioner provisions destination buckets. Against AWS it creates
// the bucket, a per-transfer role with a bucket-scoped inline policy, and
// mints temporary credentials by assuming the role. Against S3-compatible
// stores selected by an endpoint it creates the bucket and hands out the
// connector's own credentials, since those stores expose no IAM surface.
//
// All teardown steps treat already-absent entities as success, so releases
// stay idempotent under redelivery.
type BucketProvisioner struct {
	clients         ClientProvider
	monitor         monitor.Monitor
	maxRetries      uint64
	sessionDuration time.Duration
}

// NewBucketProvisioner creates the provisioner.
func NewBucketProvisioner(clients ClientProvider, mon monitor.Monitor, opts ...ProvisionerOption) *BucketProvisioner {
	if mon == nil {
		mon = monitor.Noop{}
	}
	p := &BucketProvisioner{
		clients:         clients,
		monitor:         mon,
		maxRetries:      defaultMaxRetries,
		sessionDuration: defaultSessionDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanProvision implements provision.Provisioner.
func (p *BucketProvisioner) CanProvision(definition transfer.ResourceDefinition) bool {
	return definition.Kind() == ResourceKindBucket
}

// CanDeprovision implements provision.Provisioner.
func (p *BucketProvisioner) CanDeprovision(resource transfer.ProvisionedResource) bool {
	return resource.Kind() == ResourceKindBucket
}

// Provision implements provision.Provisioner.
func (p *BucketProvisioner) Provision(ctx context.Context, definition transfer.ResourceDefinition, _ transfer.Policy) <-chan provision.Result {
	out := make(chan provision.Result, 1)
	go func() {
		defer close(out)

		def, ok := definition.(*BucketResourceDefinition)
		if !ok {
			out <- provision.Result{
				DefinitionID: definition.ID(),
				Err:          transfer.Fatal("definition %s is not a bucket definition", definition.ID()),
			}
			return
		}

		var response *transfer.ProvisionResponse
		err := p.retry(ctx, func() error {
			var err error
			response, err = p.provisionOnce(ctx, def)
			return err
		})
		if err != nil {
			if retryableFault(err) {
				err = transfer.Retryable(err)
			}
			out <- provision.Result{DefinitionID: def.DefinitionID, Err: err}
			return
		}
		p.monitor.Info("bucket provisioned",
			"process", def.ProcessID, "bucket", def.BucketName, "region", def.Region)
		out <- provision.Result{DefinitionID: def.DefinitionID, Response: response}
	}()
	return out
}

func (p *BucketProvisioner) provisionOnce(ctx context.Context, def *BucketResourceDefinition) (*transfer.ProvisionResponse, error) {
	if err := p.ensureBucket(ctx, def); err != nil {
		return nil, fmt.Errorf("creating bucket %s: %w", def.BucketName, err)
	}

	resource := &BucketProvisionedResource{
		ResourceID:   uuid.NewString(),
		DefinitionID: def.DefinitionID,
		ProcessID:    def.ProcessID,
		Region:       def.Region,
		Endpoint:     def.Endpoint,
		BucketName:   def.BucketName,
	}

	if def.Endpoint != "" {
		token, err := p.connectorToken(ctx)
		if err != nil {
			return nil, err
		}
		return &transfer.ProvisionResponse{Resource: resource, SecretToken: token}, nil
	}

	roleName := roleNameFor(def.ProcessID)
	roleArn, err := p.ensureRole(ctx, roleName, def)
	if err != nil {
		return nil, fmt.Errorf("creating role %s: %w", roleName, err)
	}

	token, err := p.assumeRole(ctx, roleArn, def)
	if err != nil {
		return nil, fmt.Errorf("assuming role %s: %w", roleName, err)
	}

	resource.RoleName = roleName
	return &transfer.ProvisionResponse{Resource: resource, SecretToken: token}, nil
}

func (p *BucketProvisioner) ensureBucket(ctx context.Context, def *BucketResourceDefinition) error {
	client, err := p.clients.S3Client(ctx, def.Region, def.Endpoint, nil)
	if err != nil {
		return err
	}

	input := &awss3.CreateBucketInput{Bucket: aws.String(def.BucketName)}
	if def.Region != DefaultRegion && def.Endpoint == "" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(def.Region),
		}
	}

	_, err = client.CreateBucket(ctx, input)
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return nil
	}
	return err
}

func (p *BucketProvisioner) ensureRole(ctx context.Context, roleName string, def *BucketResourceDefinition) (string, error) {
	stsClient, err := p.clients.STSClient(ctx, def.Region)
	if err != nil {
		return "", err
	}
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}

	iamClient, err := p.clients.IAMClient(ctx)
	if err != nil {
		return "", err
	}

	var roleArn string
	created, err := iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(fmt.Sprintf(trustPolicyTemplate, aws.ToString(identity.Arn))),
		Description:              aws.String("transfer role for process " + def.ProcessID),
		MaxSessionDuration:       aws.Int32(int32(p.sessionDuration.Seconds())),
		Tags: []iamtypes.Tag{
			{Key: aws.String("dataspaceconnector:process"), Value: aws.String(def.ProcessID)},
		},
	})
	switch {
	case err == nil:
		roleArn = aws.ToString(created.Role.Arn)
	case isEntityExists(err):
		existing, getErr := iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
		if getErr != nil {
			return "", getErr
		}
		roleArn = aws.ToString(existing.Role.Arn)
	default:
		return "", err
	}

	_, err = iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(rolePolicyName),
		PolicyDocument: aws.String(fmt.Sprintf(bucketPolicyTemplate, def.BucketName)),
	})
	if err != nil {
		return "", err
	}
	return roleArn, nil
}

func (p *BucketProvisioner) assumeRole(ctx context.Context, roleArn string, def *BucketResourceDefinition) (*transfer.SecretToken, error) {
	stsClient, err := p.clients.STSClient(ctx, def.Region)
	if err != nil {
		return nil, err
	}
	assumed, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String("transfer-" + def.ProcessID),
		DurationSeconds: aws.Int32(int32(p.sessionDuration.Seconds())),
	})
	if err != nil {
		return nil, err
	}
	creds := assumed.Credentials
	return &transfer.SecretToken{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      aws.ToTime(creds.Expiration),
	}, nil
}

func (p *BucketProvisioner) connectorToken(ctx context.Context) (*transfer.SecretToken, error) {
	creds, err := p.clients.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	expiration := creds.Expires
	if !creds.CanExpire {
		expiration = time.Now().UTC().Add(p.sessionDuration)
	}
	return &transfer.SecretToken{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Expiration:      expiration,
	}, nil
}

// Deprovision implements provision.Provisioner.
func (p *BucketProvisioner) Deprovision(ctx context.Context, resource transfer.ProvisionedResource, _ transfer.Policy) <-chan provision.DeprovisionOutcome {
	out := make(chan provision.DeprovisionOutcome, 1)
	go func() {
		defer close(out)

		res, ok := resource.(*BucketProvisionedResource)
		if !ok {
			out <- provision.DeprovisionOutcome{
				ResourceID: resource.ID(),
				Err:        transfer.Fatal("resource %s is not a bucket resource", resource.ID()),
			}
			return
		}

		err := p.retry(ctx, func() error {
			return p.deprovisionOnce(ctx, res)
		})
		if err != nil {
			if retryableFault(err) {
				err = transfer.Retryable(err)
			}
			out <- provision.DeprovisionOutcome{ResourceID: res.ResourceID, Err: err}
			return
		}
		p.monitor.Info("bucket deprovisioned", "process", res.ProcessID, "bucket", res.BucketName)
		out <- provision.DeprovisionOutcome{
			ResourceID: res.ResourceID,
			Resource:   transfer.DeprovisionedResource{ProvisionedResourceID: res.ResourceID},
		}
	}()
	return out
}

func (p *BucketProvisioner) deprovisionOnce(ctx context.Context, res *BucketProvisionedResource) error {
	client, err := p.clients.S3Client(ctx, res.Region, res.Endpoint, nil)
	if err != nil {
		return err
	}

	if err := p.emptyBucket(ctx, client, res.BucketName); err != nil {
		return fmt.Errorf("emptying bucket %s: %w", res.BucketName, err)
	}

	_, err = client.DeleteBucket(ctx, &awss3.DeleteBucketInput{Bucket: aws.String(res.BucketName)})
	if err != nil && !isNoSuchBucket(err) {
		return fmt.Errorf("deleting bucket %s: %w", res.BucketName, err)
	}

	if res.RoleName == "" {
		return nil
	}

	iamClient, err := p.clients.IAMClient(ctx)
	if err != nil {
		return err
	}
	_, err = iamClient.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(res.RoleName),
		PolicyName: aws.String(rolePolicyName),
	})
	if err != nil && !isNoSuchEntity(err) {
		return fmt.Errorf("deleting role policy of %s: %w", res.RoleName, err)
	}
	_, err = iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(res.RoleName)})
	if err != nil && !isNoSuchEntity(err) {
		return fmt.Errorf("deleting role %s: %w", res.RoleName, err)
	}
	return nil
}

func (p *BucketProvisioner) emptyBucket(ctx context.Context, client S3API, bucket string) error {
	for {
		listing, err := client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		if isNoSuchBucket(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(listing.Contents) == 0 {
			return nil
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(listing.Contents))
		for _, object := range listing.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: object.Key})
		}
		_, err = client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
		if listing.IsTruncated == nil || !*listing.IsTruncated {
			return nil
		}
	}
}

func (p *BucketProvisioner) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryableFault(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func roleNameFor(processID string) string {
	name := "transfer-" + processID
	// IAM role names are capped at 64 characters.
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// retryableFault classifies an error as transient. Server faults and
// throttling retry; client faults are permanent. Errors without a service
// error shape are treated as transport problems and retry as well.
func retryableFault(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var api smithy.APIError
	if errors.As(err, &api) {
		switch api.ErrorCode() {
		case "SlowDown", "RequestTimeout", "Throttling", "ThrottlingException",
			"RequestLimitExceeded", "ServiceUnavailable", "InternalError":
			return true
		}
		return api.ErrorFault() == smithy.FaultServer
	}
	return true
}

func isEntityExists(err error) bool {
	var exists *iamtypes.EntityAlreadyExistsException
	return errors.As(err, &exists)
}

func isNoSuchEntity(err error) bool {
	var missing *iamtypes.NoSuchEntityException
	return errors.As(err, &missing)
}

func isNoSuchBucket(err error) bool {
	var missing *s3types.NoSuchBucket
	if errors.As(err, &missing) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "NoSuchBucket"
}
