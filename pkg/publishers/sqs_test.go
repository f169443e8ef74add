package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSQSPublisherSendsSnapshot(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://sqs.eu-west-1.amazonaws.com/1/snapshots",
		client:   client,
		log:      noopLogger{},
	}

	evt := NewDashboardEvent("user-1", dto.ComposeDashboard(dto.Stats{TotalDeals: 4}, nil, nil))
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs.eu-west-1.amazonaws.com/1/snapshots" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["user_id"]
	if !ok || aws.ToString(attr.StringValue) != "user-1" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("user_id attribute missing or wrong: %#v", attr)
	}
	if got := aws.ToString(client.input.MessageAttributes["event_id"].StringValue); got != evt.ID {
		t.Fatalf("event_id attribute = %q, want %q", got, evt.ID)
	}
	if client.input.MessageGroupId != nil || client.input.MessageDeduplicationId != nil {
		t.Fatalf("standard queue must not carry FIFO fields")
	}

	var body Event
	if err := json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	stats, _ := body.Dashboard["stats"].(map[string]any)
	if body.Kind != EventKindDashboardSnapshot || stats["total_deals"] != float64(4) {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestSQSPublisherFIFOQueue(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://sqs.eu-west-1.amazonaws.com/1/snapshots.fifo",
		fifo:     isFIFO("https://sqs.eu-west-1.amazonaws.com/1/snapshots.fifo"),
		client:   client,
		log:      noopLogger{},
	}

	evt := Event{ID: "evt-1", Kind: EventKindDashboardSnapshot, UserID: "7"}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.MessageGroupId); got != "user-7" {
		t.Fatalf("MessageGroupId = %q", got)
	}
	if got := aws.ToString(client.input.MessageDeduplicationId); got != "evt-1" {
		t.Fatalf("MessageDeduplicationId = %q", got)
	}
}

func TestSQSPublisherPublishError(t *testing.T) {
	boom := errors.New("boom")
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://example.com/queue",
		client:   &fakeSQSClient{err: boom},
		log:      noopLogger{},
	}

	if err := pub.Publish(context.Background(), Event{ID: "evt-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}
