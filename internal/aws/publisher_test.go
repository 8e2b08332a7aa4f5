package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: sdkaws.String("m-1")}, nil
}

func TestPublisherSendsAttributes(t *testing.T) {
	m := &mockSQS{}
	p := NewPublisher(m, "http://localhost:4566/000000000000/orders")

	err := p.Publish(context.Background(), []byte("ORD12345678"), "OrderPlaced", []byte(`{"event_type":"OrderPlaced"}`))
	require.NoError(t, err)

	require.Len(t, m.inputs, 1)
	in := m.inputs[0]
	assert.Equal(t, "http://localhost:4566/000000000000/orders", sdkaws.ToString(in.QueueUrl))
	assert.Equal(t, `{"event_type":"OrderPlaced"}`, sdkaws.ToString(in.MessageBody))
	assert.Equal(t, "OrderPlaced", sdkaws.ToString(in.MessageAttributes["event_type"].StringValue))
	assert.Equal(t, "ORD12345678", sdkaws.ToString(in.MessageAttributes["order_code"].StringValue))
	assert.Equal(t, "String", sdkaws.ToString(in.MessageAttributes["order_code"].DataType))
}

func TestPublisherWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	p := NewPublisher(&mockSQS{err: boom}, "q")

	err := p.Publish(context.Background(), nil, "OrderPlaced", []byte("{}"))
	assert.ErrorIs(t, err, boom)
}

func TestLoadAWSConfigDefaultRegion(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadAWSConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)

	cfg, err = LoadAWSConfig(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}
