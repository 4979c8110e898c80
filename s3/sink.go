package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/agri-gaia/DataSpaceConnector/monitor"
	"github.com/agri-gaia/DataSpaceConnector/pipeline"
	"github.com/agri-gaia/DataSpaceConnector/transfer"
	"github.com/agri-gaia/DataSpaceConnector/vault"
)

const (
	defaultSinkConcurrency = 5

	// defaultChunkSize is the threshold above which a part is streamed as a
	// multipart upload instead of a single put.
	defaultChunkSize = int64(500 * 1024 * 1024)
)

// SinkFactoryOption configures a SinkFactory.
type SinkFactoryOption func(*SinkFactory)

// WithSinkConcurrency bounds the per-transfer worker pool.
func WithSinkConcurrency(n int) SinkFactoryOption {
	return func(f *SinkFactory) { f.concurrency = n }
}

// WithChunkSize sets the multipart threshold and chunk size in bytes.
func WithChunkSize(size int64) SinkFactoryOption {
	return func(f *SinkFactory) { f.chunkSize = size }
}

// SinkFactory builds data sinks writing to AmazonS3 addresses. Each sink
// fans parts out over a bounded worker pool and writes the completion
// marker once every part landed.
type SinkFactory struct {
	clients     ClientProvider
	vault       vault.Vault
	monitor     monitor.Monitor
	concurrency int
	chunkSize   int64
}

// NewSinkFactory creates the factory.
func NewSinkFactory(clients ClientProvider, secrets vault.Vault, mon monitor.Monitor, opts ...SinkFactoryOption) *SinkFactory {
	if mon == nil {
		mon = monitor.Noop{}
	}
	f := &SinkFactory{
		clients:     clients,
		vault:       secrets,
		monitor:     mon,
		concurrency: defaultSinkConcurrency,
		chunkSize:   defaultChunkSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CanHandle implements pipeline.DataSinkFactory.
func (f *SinkFactory) CanHandle(request transfer.DataFlowRequest) bool {
	return request.DestinationAddress.Type == TypeAmazonS3
}

// Validate implements pipeline.DataSinkFactory.
func (f *SinkFactory) Validate(request transfer.DataFlowRequest) error {
	if request.DestinationAddress.Property(PropertyBucketName) == "" {
		return transfer.BadRequest("destination address of %s names no bucket", request.ID)
	}
	return nil
}

// CreateSink implements pipeline.DataSinkFactory.
func (f *SinkFactory) CreateSink(ctx context.Context, request transfer.DataFlowRequest) (pipeline.DataSink, error) {
	address := request.DestinationAddress
	token, err := resolveToken(ctx, f.vault, address)
	if err != nil {
		return nil, err
	}
	client, err := f.clients.S3Client(ctx, address.Property(PropertyRegion), address.Property(PropertyEndpoint), token)
	if err != nil {
		return nil, err
	}

	assetName := address.Property(PropertyAssetName)
	if assetName == "" {
		assetName = request.ProcessID
	}

	sink := &bucketSink{
		client:    client,
		bucket:    address.Property(PropertyBucketName),
		assetName: assetName,
		chunkSize: f.chunkSize,
	}
	return pipeline.NewParallelSink(sink, f.concurrency, request.ID, f.monitor), nil
}

// bucketSink writes parts as objects. Parts above the chunk size are
// streamed as multipart uploads so a part never has to fit in memory whole.
type bucketSink struct {
	client    S3API
	bucket    string
	assetName string
	chunkSize int64
}

// TransferPart implements pipeline.PartSink.
func (s *bucketSink) TransferPart(ctx context.Context, part pipeline.Part) error {
	reader, err := part.Open(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	if part.Size() >= 0 && part.Size() < s.chunkSize {
		return s.putObject(ctx, part.Name(), reader)
	}
	return s.putMultipart(ctx, part.Name(), reader)
}

func (s *bucketSink) putObject(ctx context.Context, key string, reader io.Reader) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading part %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("writing object %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *bucketSink) putMultipart(ctx context.Context, key string, reader io.Reader) error {
	upload, err := s.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("starting multipart upload of %s/%s: %w", s.bucket, key, err)
	}

	var completed []s3types.CompletedPart
	buffer := make([]byte, s.chunkSize)
	for partNumber := int32(1); ; partNumber++ {
		n, readErr := io.ReadFull(reader, buffer)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			s.abort(ctx, key, upload.UploadId)
			return fmt.Errorf("reading part %s: %w", key, readErr)
		}

		uploaded, err := s.client.UploadPart(ctx, &awss3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   upload.UploadId,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(buffer[:n]),
		})
		if err != nil {
			s.abort(ctx, key, upload.UploadId)
			return fmt.Errorf("uploading chunk %d of %s/%s: %w", partNumber, s.bucket, key, err)
		}
		completed = append(completed, s3types.CompletedPart{
			ETag:       uploaded.ETag,
			PartNumber: aws.Int32(partNumber),
		})

		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	if len(completed) == 0 {
		// Empty stream of unknown size; a multipart upload cannot complete
		// without parts.
		s.abort(ctx, key, upload.UploadId)
		return s.putObject(ctx, key, bytes.NewReader(nil))
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        upload.UploadId,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		s.abort(ctx, key, upload.UploadId)
		return fmt.Errorf("completing multipart upload of %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *bucketSink) abort(ctx context.Context, key string, uploadID *string) {
	// Best effort; an orphaned upload is reaped by bucket lifecycle rules.
	_, _ = s.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
}

// Complete implements pipeline.PartSink by writing the zero-length
// completion marker.
func (s *bucketSink) Complete(ctx context.Context) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.assetName + CompletionMarkerSuffix),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("writing completion marker for %s: %w", s.assetName, err)
	}
	return nil
}
