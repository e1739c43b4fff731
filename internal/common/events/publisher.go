// internal/common/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

const (
	TypeAppointmentConfirmed = "appointment.confirmed"
	TypeHoldReleased         = "appointment.hold_released"
)

// Event is a domain event emitted by the direct lane.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	TenantID   string                 `json:"tenantId,omitempty"`
	SessionID  string                 `json:"sessionId,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// NewEvent stamps an ID and timestamp.
func NewEvent(eventType, tenantID, sessionID string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// snsAPI is the slice of the SNS client the publisher needs.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   snsAPI
	topicARN string
}

func NewSNSPublisher(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSPublisher{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (p *SNSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", event.Type, err)
	}
	return nil
}

// NoopPublisher drops events; used when SNS is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
