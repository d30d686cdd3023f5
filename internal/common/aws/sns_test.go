package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSPublisher_PublishGovernanceEvent(t *testing.T) {
	fake := &fakeSNS{}
	pub := NewSNSPublisherWithClient(fake, "arn:aws:sns:us-east-1:123456789012:knowledge")

	err := pub.PublishGovernanceEvent(context.Background(), GovernanceEvent{
		ObjectID:   "obj-1",
		Kind:       "motif",
		FromStatus: "active",
		ToStatus:   "deprecated",
		Reason:     "stale",
	})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:knowledge", *in.TopicArn)
	assert.Equal(t, "knowledge deprecated", *in.Subject)
	assert.Equal(t, "motif", *in.MessageAttributes["kind"].StringValue)

	var event GovernanceEvent
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &event))
	assert.Equal(t, "obj-1", event.ObjectID)
	assert.Equal(t, "stale", event.Reason)
}

func TestSNSPublisher_PublishError(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	pub := NewSNSPublisherWithClient(fake, "arn")

	err := pub.PublishGovernanceEvent(context.Background(), GovernanceEvent{ObjectID: "obj-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
