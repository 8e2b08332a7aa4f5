package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends events to one SQS queue. It satisfies orders.EventPublisher.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{SQS: client, QueueURL: queueURL}
}

// Publish sends value as the message body. The event type and partition key
// travel as string message attributes.
func (p *Publisher) Publish(ctx context.Context, key []byte, eventType string, value []byte) error {
	attrs := map[string]sqstypes.MessageAttributeValue{
		"event_type": stringAttr(eventType),
	}
	if len(key) > 0 {
		attrs["order_code"] = stringAttr(string(key))
	}
	_, err := p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          sdkaws.String(p.QueueURL),
		MessageBody:       sdkaws.String(string(value)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: sdkaws.String("String"), StringValue: sdkaws.String(v)}
}
