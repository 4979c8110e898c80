package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-gaia/DataSpaceConnector/transfer"
)

type fakeSourceFactory struct {
	addressType string
	source      DataSource
}

func (f *fakeSourceFactory) CanHandle(r transfer.DataFlowRequest) bool {
	return r.SourceAddress.Type == f.addressType
}

func (f *fakeSourceFactory) Validate(transfer.DataFlowRequest) error { return nil }

func (f *fakeSourceFactory) CreateSource(context.Context, transfer.DataFlowRequest) (DataSource, error) {
	return f.source, nil
}

type fakeSinkFactory struct {
	addressType string
	sink        DataSink
}

func (f *fakeSinkFactory) CanHandle(r transfer.DataFlowRequest) bool {
	return r.DestinationAddress.Type == f.addressType
}

func (f *fakeSinkFactory) Validate(transfer.DataFlowRequest) error { return nil }

func (f *fakeSinkFactory) CreateSink(context.Context, transfer.DataFlowRequest) (DataSink, error) {
	return f.sink, nil
}

type countingSink struct {
	transferred int
}

func (s *countingSink) Transfer(ctx context.Context, source DataSource) error {
	parts, err := source.Parts(ctx)
	if err != nil {
		return err
	}
	s.transferred = len(parts)
	return nil
}

func flowRequest(sourceType, destinationType string) transfer.DataFlowRequest {
	return transfer.DataFlowRequest{
		ID:                 "req-1",
		ProcessID:          "tp-1",
		SourceAddress:      transfer.DataAddress{Type: sourceType},
		DestinationAddress: transfer.DataAddress{Type: destinationType},
	}
}

func TestServiceCanHandleNeedsBothEnds(t *testing.T) {
	s := NewService(nil)
	s.RegisterSourceFactory(&fakeSourceFactory{addressType: "AmazonS3"})

	assert.False(t, s.CanHandle(flowRequest("AmazonS3", "AmazonS3")), "sink factory missing")

	s.RegisterSinkFactory(&fakeSinkFactory{addressType: "AmazonS3"})
	assert.True(t, s.CanHandle(flowRequest("AmazonS3", "AmazonS3")))
	assert.False(t, s.CanHandle(flowRequest("Azure", "AmazonS3")))
}

func TestServiceValidateNamesMissingFactory(t *testing.T) {
	s := NewService(nil)
	s.RegisterSourceFactory(&fakeSourceFactory{addressType: "AmazonS3"})

	err := s.Validate(flowRequest("AmazonS3", "Azure"))
	require.Error(t, err)
	assert.True(t, transfer.IsBadRequest(err))
}

func TestServiceTransferClosesSource(t *testing.T) {
	source := &memorySource{parts: makeParts(3)}
	sink := &countingSink{}

	s := NewService(nil)
	s.RegisterSourceFactory(&fakeSourceFactory{addressType: "AmazonS3", source: source})
	s.RegisterSinkFactory(&fakeSinkFactory{addressType: "AmazonS3", sink: sink})

	err := s.Transfer(context.Background(), flowRequest("AmazonS3", "AmazonS3"))
	require.NoError(t, err)
	assert.Equal(t, 3, sink.transferred)
	assert.True(t, source.closed, "source must be closed after the transfer")
}
