package display

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

const publishTimeout = 15 * time.Second

// Publisher delivers events to the customer display. Implementations must be
// safe for concurrent use; delivery is best effort and never blocks a sale.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpTopic struct {
	publisher *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	result := t.publisher.Publish(ctx, msg)
	if result == nil {
		return nil
	}
	return result
}

// PubSubPublisher pushes display events onto the configured Pub/Sub topic.
type PubSubPublisher struct {
	topic  topicPublisher
	logger *logger.Logger
}

func NewPubSubPublisher(topic *gcppubsub.Publisher, logg *logger.Logger) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("display topic publisher is required")
	}
	return &PubSubPublisher{topic: gcpTopic{publisher: topic}, logger: logg}, nil
}

// Publish hands the event to the topic and returns without waiting for the
// server acknowledgement; the outcome is checked in the background so a slow
// broker never stalls a sale. Failures are logged and swallowed.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logError(ctx, event, err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	result := p.topic.Publish(publishCtx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type":  string(event.Type),
			"terminal_id": event.TerminalID,
		},
	})
	if result == nil {
		cancel()
		p.logError(ctx, event, errors.New("nil publish result"))
		return
	}

	logCtx := context.WithoutCancel(ctx)
	go func() {
		defer cancel()
		if _, err := result.Get(publishCtx); err != nil {
			p.logError(logCtx, event, err)
		}
	}()
}

func (p *PubSubPublisher) logError(ctx context.Context, event Event, err error) {
	if p.logger == nil {
		return
	}
	ctx = p.logger.WithFields(ctx, map[string]any{
		"event_type":  string(event.Type),
		"terminal_id": event.TerminalID,
	})
	p.logger.Error(ctx, "display.publish_failed", err)
}

// NoopPublisher drops every event. Used when no display transport is
// configured (single-screen deployments, tests).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}
