// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// GovernanceEvent describes a knowledge lifecycle transition.
type GovernanceEvent struct {
	ObjectID   string `json:"objectId"`
	Kind       string `json:"kind"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurredAt"`
}

// SNSPublisher publishes governance events to a single topic.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewSNSPublisher(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSNSPublisherWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSPublisherWithClient(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (s *SNSPublisher) PublishGovernanceEvent(ctx context.Context, event GovernanceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal governance event: %w", err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awsv2.String(s.topicARN),
		Message:  awsv2.String(string(payload)),
		Subject:  awsv2.String("knowledge " + event.ToStatus),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    awsv2.String("String"),
				StringValue: awsv2.String(event.Kind),
			},
			"status": {
				DataType:    awsv2.String("String"),
				StringValue: awsv2.String(event.ToStatus),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
