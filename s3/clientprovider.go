package s3

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

// ClientProvider hands out service clients for a region, endpoint and
// credential set. Provisioners, the pipeline bindings and the status checker
// all go through it, so tests can substitute mocked clients in one place.
type ClientProvider interface {
	// S3Client returns an S3 client. A nil token uses the connector's own
	// credentials; endpoint selects an S3-compatible store and implies
	// path-style addressing.
	S3Client(ctx context.Context, region, endpoint string, token *transfer.SecretToken) (S3API, error)

	// STSClient returns an STS client for the region.
	STSClient(ctx context.Context, region string) (STSAPI, error)

	// IAMClient returns an IAM client. IAM is a global service.
	IAMClient(ctx context.Context) (IAMAPI, error)

	// Credentials resolves the connector's own credentials. Used as the
	// transfer token against stores without an IAM and STS surface.
	Credentials(ctx context.Context) (aws.Credentials, error)
}

// Provider is the default ClientProvider backed by the AWS SDK. Clients are
// cached per region, endpoint and access key.
type Provider struct {
	cfg aws.Config

	mu  sync.Mutex
	s3s map[string]S3API
	sts map[string]STSAPI
	iam IAMAPI
}

// NewProvider creates a provider on top of the default AWS configuration
// chain (environment, shared config, instance metadata).
func NewProvider(ctx context.Context) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewProviderFromConfig(cfg), nil
}

// NewProviderFromConfig creates a provider on top of an explicit
// configuration.
func NewProviderFromConfig(cfg aws.Config) *Provider {
	return &Provider{
		cfg: cfg,
		s3s: map[string]S3API{},
		sts: map[string]STSAPI{},
	}
}

// S3Client implements ClientProvider.
func (p *Provider) S3Client(ctx context.Context, region, endpoint string, token *transfer.SecretToken) (S3API, error) {
	if region == "" {
		region = DefaultRegion
	}

	key := region + "|" + endpoint
	if token != nil {
		key += "|" + token.AccessKeyID
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.s3s[key]; ok {
		return client, nil
	}

	cfg := p.cfg.Copy()
	cfg.Region = region
	if token != nil {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			token.AccessKeyID, token.SecretAccessKey, token.SessionToken)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// S3-compatible stores generally do not resolve
			// virtual-hosted bucket names.
			o.UsePathStyle = true
		}
	})
	p.s3s[key] = client
	return client, nil
}

// STSClient implements ClientProvider.
func (p *Provider) STSClient(ctx context.Context, region string) (STSAPI, error) {
	if region == "" {
		region = DefaultRegion
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.sts[region]; ok {
		return client, nil
	}

	cfg := p.cfg.Copy()
	cfg.Region = region
	client := sts.NewFromConfig(cfg)
	p.sts[region] = client
	return client, nil
}

// IAMClient implements ClientProvider.
func (p *Provider) IAMClient(ctx context.Context) (IAMAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.iam == nil {
		p.iam = iam.NewFromConfig(p.cfg)
	}
	return p.iam, nil
}

// Credentials implements ClientProvider.
func (p *Provider) Credentials(ctx context.Context) (aws.Credentials, error) {
	return p.cfg.Credentials.Retrieve(ctx)
}
