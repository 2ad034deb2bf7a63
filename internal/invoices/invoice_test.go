package invoices

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

func sampleCart(status enums.CartStatus) *models.PlacedCart {
	return &models.PlacedCart{
		ID:          uuid.New(),
		OrderCode:   "CD-20250901-ABCDEF",
		Status:      status,
		PaymentType: enums.PaymentTypeOffline,
		CollectionType: &types.CollectionSnapshot{
			Name:       "Campus Pickup",
			BaseCharge: 10,
		},
		CollectionTypeCost: 10,
		OrdersCost:         50,
		TotalCost:          60,
		PlacedAt:           time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		Orders: []models.PlacedOrder{
			{
				ServiceName:    "Official Transcript",
				UnitsRequested: 1,
				ServiceCost:    50,
				TotalCost:      50,
				Status:         enums.OrderStatusProcessing,
			},
		},
	}
}

func sampleOwner() *models.User {
	return &models.User{
		MemberID: "S2025001",
		Name:     "A Student",
		Email:    "s2025001@example.edu",
	}
}

func TestRenderProducesPDF(t *testing.T) {
	pdf, err := Render(sampleCart(enums.CartStatusProcessing), sampleOwner())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a PDF (starts with %q)", pdf[:8])
	}
}

func TestRenderRejectsUnpaidCart(t *testing.T) {
	_, err := Render(sampleCart(enums.CartStatusPlaced), sampleOwner())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestFilenameUsesOrderCode(t *testing.T) {
	if got := Filename(sampleCart(enums.CartStatusProcessing)); got != "invoice-CD-20250901-ABCDEF.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
}
