package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agri-gaia/DataSpaceConnector/pipeline"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/vault"
)

// resolveToken extracts the credentials of an address: the vault entry named
// by the address key name when set, embedded static keys otherwise, nil when
// the address carries neither and the connector's own credentials apply.
func resolveToken(ctx context.Context, secrets vault.Vault, address transfer.DataAddress) (*transfer.SecretToken, error) {
	if keyName := address.KeyName(); keyName != "" {
		raw, err := secrets.ResolveSecret(ctx, keyName)
		if err != nil {
			if errors.Is(err, vault.ErrSecretNotFound) {
				return nil, transfer.Fatal("secret %s referenced by address not found", keyName)
			}
			return nil, err
		}
		var token transfer.SecretToken
		if err := json.Unmarshal([]byte(raw), &token); err != nil {
			return nil, fmt.Errorf("decoding secret %s: %w", keyName, err)
		}
		return &token, nil
	}

	if accessKey := address.Property(PropertyAccessKeyID); accessKey != "" {
		return &transfer.SecretToken{
			AccessKeyID:     accessKey,
			SecretAccessKey: address.Property(PropertySecretAccessKey),
		}, nil
	}
	return nil, nil
}

// SourceFactory builds data sources reading from AmazonS3 addresses.
type SourceFactory struct {
	clients ClientProvider
	vault   vault.Vault
}

// NewSourceFactory creates the factory.
func NewSourceFactory(clients ClientProvider, secrets vault.Vault) *SourceFactory {
	return &SourceFactory{clients: clients, vault: secrets}
}

// CanHandle implements pipeline.DataSourceFactory.
func (f *SourceFactory) CanHandle(request transfer.DataFlowRequest) bool {
	return request.SourceAddress.Type == TypeAmazonS3
}

// Validate implements pipeline.DataSourceFactory.
func (f *SourceFactory) Validate(request transfer.DataFlowRequest) error {
	if request.SourceAddress.Property(PropertyBucketName) == "" {
		return transfer.BadRequest("source address of %s names no bucket", request.ID)
	}
	return nil
}

// CreateSource implements pipeline.DataSourceFactory.
func (f *SourceFactory) CreateSource(ctx context.Context, request transfer.DataFlowRequest) (pipeline.DataSource, error) {
	address := request.SourceAddress
	token, err := resolveToken(ctx, f.vault, address)
	if err != nil {
		return nil, err
	}
	client, err := f.clients.S3Client(ctx, address.Property(PropertyRegion), address.Property(PropertyEndpoint), token)
	if err != nil {
		return nil, err
	}
	return &source{
		client: client,
		bucket: address.Property(PropertyBucketName),
		prefix: address.Property(PropertyAssetName),
	}, nil
}

// source enumerates the objects under the asset prefix, one part per object.
type source struct {
	client S3API
	bucket string
	prefix string
}

// Parts implements pipeline.DataSource. Completion markers of earlier
// transfers are never treated as data.
func (s *source) Parts(ctx context.Context) ([]pipeline.Part, error) {
	var parts []pipeline.Part
	input := &awss3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	for {
		listing, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing bucket %s: %w", s.bucket, err)
		}
		for _, object := range listing.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, CompletionMarkerSuffix) {
				continue
			}
			parts = append(parts, &objectPart{
				client: s.client,
				bucket: s.bucket,
				key:    key,
				size:   aws.ToInt64(object.Size),
			})
		}
		if listing.IsTruncated == nil || !*listing.IsTruncated {
			return parts, nil
		}
		input.ContinuationToken = listing.NextContinuationToken
	}
}

// Close implements pipeline.DataSource.
func (s *source) Close() error { return nil }

type objectPart struct {
	client S3API
	bucket string
	key    string
	size   int64
}

// Name implements pipeline.Part.
func (p *objectPart) Name() string { return p.key }

// Size implements pipeline.Part.
func (p *objectPart) Size() int64 { return p.size }

// Open implements pipeline.Part.
func (p *objectPart) Open(ctx context.Context) (io.ReadCloser, error) {
	object, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
	})
	if err != nil {
		return nil, fmt.Errorf("opening object %s/%s: %w", p.bucket, p.key, err)
	}
	return object.Body, nil
}
