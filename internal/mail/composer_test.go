package mail

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
)

func envelopeWith(t *testing.T, data map[string]any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return outbox.PayloadEnvelope{Version: 1, Data: raw}
}

func TestComposePlacedOfflineMentionsPaymentCode(t *testing.T) {
	email, err := ComposeFromEvent(enums.EventCartPlaced, envelopeWith(t, map[string]any{
		"orderCode":   "CD-20250901-ABCDEF",
		"email":       "s2025001@example.edu",
		"totalCost":   60,
		"paymentType": "offline",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.To[0] != "s2025001@example.edu" {
		t.Fatalf("wrong recipient %v", email.To)
	}
	if !strings.Contains(email.TextBody, "offline payment") {
		t.Fatalf("offline instructions missing: %q", email.TextBody)
	}
}

func TestComposeCancelledIncludesReason(t *testing.T) {
	email, err := ComposeFromEvent(enums.EventCartCancelled, envelopeWith(t, map[string]any{
		"orderCode": "CD-20250901-ABCDEF",
		"email":     "s2025001@example.edu",
		"reason":    "Payment delay",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(email.TextBody, "Payment delay") {
		t.Fatalf("reason missing: %q", email.TextBody)
	}
}

func TestComposeUnknownEventIsSilent(t *testing.T) {
	email, err := ComposeFromEvent(enums.EventOrderEvicted, envelopeWith(t, map[string]any{
		"email": "s2025001@example.edu",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email != nil {
		t.Fatal("expected no mail for an unmapped event")
	}
}

func TestComposeRejectsMissingRecipient(t *testing.T) {
	if _, err := ComposeFromEvent(enums.EventCartPlaced, envelopeWith(t, map[string]any{
		"orderCode": "CD-20250901-ABCDEF",
	})); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}
