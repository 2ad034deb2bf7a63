package mail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
)

// eventPayload is the common shape the lifecycle events carry. Fields a
// given event does not set stay empty.
type eventPayload struct {
	OrderCode   string `json:"orderCode"`
	MemberID    string `json:"memberId"`
	Email       string `json:"email"`
	TotalCost   int    `json:"totalCost"`
	PaymentType string `json:"paymentType"`
	Reason      string `json:"reason"`
	CourierName string `json:"courierName"`
	TrackingID  string `json:"trackingId"`
	DaysLeft    int    `json:"daysLeft"`
}

// ComposeFromEvent renders the email for one lifecycle event, or nil when
// the event type has no mail.
func ComposeFromEvent(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*Email, error) {
	var payload eventPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if payload.Email == "" {
		return nil, fmt.Errorf("event %s has no recipient email", eventType)
	}

	var subject string
	var lines []string

	switch eventType {
	case enums.EventCartPlaced:
		subject = fmt.Sprintf("Order %s received", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("We have received your order %s.", payload.OrderCode),
			fmt.Sprintf("Total: %d", payload.TotalCost),
		}
		if payload.PaymentType == string(enums.PaymentTypeOffline) {
			lines = append(lines, "Please complete the offline payment and share the payment code with the office to begin processing.")
		}
	case enums.EventCartProcessing:
		subject = fmt.Sprintf("Order %s is being processed", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("Payment for order %s is confirmed and your requests are being processed.", payload.OrderCode),
		}
	case enums.EventCartReady:
		subject = fmt.Sprintf("Order %s is ready", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("Order %s is ready for collection.", payload.OrderCode),
		}
	case enums.EventCartCompleted:
		subject = fmt.Sprintf("Order %s completed", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("Order %s has been completed.", payload.OrderCode),
		}
		if payload.CourierName != "" {
			lines = append(lines, fmt.Sprintf("Dispatched via %s, tracking id %s.", payload.CourierName, payload.TrackingID))
		}
	case enums.EventCartCancelled:
		subject = fmt.Sprintf("Order %s cancelled", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("Order %s was cancelled.", payload.OrderCode),
		}
		if payload.Reason != "" {
			lines = append(lines, "Reason: "+payload.Reason)
		}
	case enums.EventCartPaymentFailed:
		subject = fmt.Sprintf("Payment for order %s failed", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("A payment attempt for order %s was not successful.", payload.OrderCode),
			"You can retry the payment from your cart.",
		}
	case enums.EventCartReminder:
		subject = fmt.Sprintf("Payment pending for order %s", payload.OrderCode)
		lines = []string{
			fmt.Sprintf("Order %s is still awaiting payment.", payload.OrderCode),
		}
		if payload.DaysLeft > 0 {
			lines = append(lines, fmt.Sprintf("It will be cancelled in %d day(s) if the payment is not completed.", payload.DaysLeft))
		}
	default:
		return nil, nil
	}

	lines = append(lines, "", "CampusDesk Document Services")
	return &Email{
		To:       []string{payload.Email},
		Subject:  subject,
		TextBody: strings.Join(lines, "\n"),
	}, nil
}
