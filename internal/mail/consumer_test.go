package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/redis"
)

// the production wiring hands the redis client straight to the consumer
var _ dedupeStore = (*redis.Client)(nil)

type memDedupe struct {
	keys map[string]string
}

func (m *memDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memDedupe) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func (m *memDedupe) IdempotencyKey(scope, key string) string {
	return "test:" + scope + ":" + key
}

type recordingSender struct {
	sent []*Email
	err  error
}

func (s *recordingSender) Send(ctx context.Context, email *Email) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, email)
	return "msg-1", nil
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, eventID string) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"orderCode": "CD-2025-0001",
		"memberId":  "S2025001",
		"email":     "student@example.edu",
		"totalCost": 60,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version: 1,
		EventID: eventID,
		Data:    data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func newConsumerFixture() (*Consumer, *memDedupe, *recordingSender) {
	dedupe := &memDedupe{keys: map[string]string{}}
	sender := &recordingSender{}
	consumer := &Consumer{
		sender: sender,
		dedupe: dedupe,
		logg:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
	return consumer, dedupe, sender
}

func TestProcessSendsOncePerEvent(t *testing.T) {
	consumer, _, sender := newConsumerFixture()
	msg := eventMessage(t, enums.EventCartPlaced, "evt-1")

	if !consumer.process(context.Background(), msg) {
		t.Fatalf("first delivery must ack")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sender.sent))
	}

	// redelivery of the same event is acked without a second send
	if !consumer.process(context.Background(), eventMessage(t, enums.EventCartPlaced, "evt-1")) {
		t.Fatalf("redelivery must ack")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("redelivery must not send again, got %d mails", len(sender.sent))
	}
}

func TestProcessReleasesMarkerOnSendFailure(t *testing.T) {
	consumer, dedupe, sender := newConsumerFixture()
	sender.err = errors.New("provider unavailable")

	if consumer.process(context.Background(), eventMessage(t, enums.EventCartCancelled, "evt-2")) {
		t.Fatalf("failed send must nack for redelivery")
	}
	if len(dedupe.keys) != 0 {
		t.Fatalf("marker must be released so the retry can send, got %v", dedupe.keys)
	}

	sender.err = nil
	if !consumer.process(context.Background(), eventMessage(t, enums.EventCartCancelled, "evt-2")) {
		t.Fatalf("retry must ack")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected the retry to send one mail, got %d", len(sender.sent))
	}
}

func TestProcessDropsUnmailedEvents(t *testing.T) {
	consumer, _, sender := newConsumerFixture()
	if !consumer.process(context.Background(), eventMessage(t, enums.OutboxEventType("cart.touched"), "evt-3")) {
		t.Fatalf("events without a mail must still ack")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no mail expected, got %d", len(sender.sent))
	}
}
