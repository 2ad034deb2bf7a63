package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
)

const (
	consumerName    = "lifecycle-mailer"
	processedTTL    = 7 * 24 * time.Hour
	processedMarker = "1"
)

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, key string) string
}

// Consumer drains lifecycle events from the notification subscription and
// sends the matching email. Delivery is at-least-once upstream; the dedupe
// marker keeps each event's mail to one send.
type Consumer struct {
	subscription *pubsub.Subscriber
	sender       Sender
	dedupe       dedupeStore
	logg         *logger.Logger
}

func NewConsumer(subscription *pubsub.Subscriber, sender Sender, dedupe dedupeStore, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("dedupe store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		sender:       sender,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		// a payload that never parses will never parse; drop it
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	if envelope.EventID == "" {
		c.logg.Warn(logCtx, "envelope has no event id")
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	key := c.dedupe.IdempotencyKey(consumerName, envelope.EventID)
	fresh, err := c.dedupe.SetNX(ctx, key, processedMarker, processedTTL)
	if err != nil {
		c.logg.Error(logCtx, "dedupe check failed", err)
		return false
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	email, err := ComposeFromEvent(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to compose mail", err)
		return true
	}
	if email == nil {
		return true
	}

	if _, err := c.sender.Send(ctx, email); err != nil {
		c.logg.Error(logCtx, "failed to send mail", err)
		_ = c.dedupe.Del(ctx, key)
		return false
	}

	c.logg.Info(logCtx, "lifecycle mail sent")
	return true
}
