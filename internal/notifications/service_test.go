package notifications

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

type memNotificationRepo struct {
	rows []*models.Notification
}

func (m *memNotificationRepo) WithTx(tx *gorm.DB) NotificationRepository { return m }

func (m *memNotificationRepo) Create(ctx context.Context, row *models.Notification) (*models.Notification, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	stored := *row
	m.rows = append(m.rows, &stored)
	return row, nil
}

func (m *memNotificationRepo) ListForRecipient(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if row.Recipient != recipient && row.Recipient != models.BroadcastRecipient {
			continue
		}
		out = append(out, *row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkRead(ctx context.Context, id uuid.UUID, recipient string, at time.Time) error {
	for _, row := range m.rows {
		if row.ID == id && row.Recipient == recipient && row.ReadAt == nil {
			stamped := at
			row.ReadAt = &stamped
		}
	}
	return nil
}

func (m *memNotificationRepo) RewriteCartCorrelation(ctx context.Context, fromCartID, toCartID uuid.UUID) error {
	for _, row := range m.rows {
		if row.CartID != nil && *row.CartID == fromCartID {
			rewritten := toCartID
			row.CartID = &rewritten
		}
	}
	return nil
}

func (m *memNotificationRepo) ExistsForCartAndMessage(ctx context.Context, cartID uuid.UUID, recipient, message string) (bool, error) {
	for _, row := range m.rows {
		if row.CartID != nil && *row.CartID == cartID && row.Recipient == recipient && row.Message == message {
			return true, nil
		}
	}
	return false, nil
}

func newNotificationFixture(t *testing.T) (Service, *memNotificationRepo) {
	t.Helper()
	repo := &memNotificationRepo{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, repo
}

func TestEnqueueValidatesAndDefaultsActor(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	ctx := context.Background()

	err := svc.Enqueue(ctx, EnqueueInput{Recipient: " ", Message: "hello"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty recipient, got %v", err)
	}
	err = svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025001", Message: ""})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty message, got %v", err)
	}

	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025001", Message: "Order placed."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.rows))
	}
	if repo.rows[0].CreatedBy != types.SystemActor {
		t.Fatalf("actor not defaulted: %q", repo.rows[0].CreatedBy)
	}
}

func TestEnqueueDedupesOnCart(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	ctx := context.Background()
	cartID := uuid.New()

	input := EnqueueInput{
		Recipient:    "S2025001",
		Message:      "Your request was removed.",
		CartID:       &cartID,
		DedupeOnCart: true,
	}
	if err := svc.Enqueue(ctx, input); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := svc.Enqueue(ctx, input); err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("duplicate notice not suppressed: %d rows", len(repo.rows))
	}

	// a different message for the same cart still goes through
	input.Message = "Your cart total changed."
	if err := svc.Enqueue(ctx, input); err != nil {
		t.Fatalf("distinct enqueue: %v", err)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("distinct notice suppressed: %d rows", len(repo.rows))
	}
}

func TestListIncludesBroadcasts(t *testing.T) {
	svc, _ := newNotificationFixture(t)
	ctx := context.Background()

	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025001", Message: "personal"}); err != nil {
		t.Fatalf("enqueue personal: %v", err)
	}
	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: models.BroadcastRecipient, Message: "campus closed Friday"}); err != nil {
		t.Fatalf("enqueue broadcast: %v", err)
	}
	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025999", Message: "someone else's"}); err != nil {
		t.Fatalf("enqueue other: %v", err)
	}

	rows, err := svc.List(ctx, "S2025001", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected personal + broadcast, got %d", len(rows))
	}

	if _, err := svc.List(ctx, "", 10); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty recipient, got %v", err)
	}
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	ctx := context.Background()

	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025001", Message: "personal"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id := repo.rows[0].ID

	if err := svc.MarkRead(ctx, id, "S2025999"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if repo.rows[0].ReadAt != nil {
		t.Fatal("another recipient marked the notice read")
	}

	if err := svc.MarkRead(ctx, id, "S2025001"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if repo.rows[0].ReadAt == nil {
		t.Fatal("notice not marked read")
	}
}

func TestRewriteCartCorrelation(t *testing.T) {
	svc, repo := newNotificationFixture(t)
	ctx := context.Background()

	liveID := uuid.New()
	placedID := uuid.New()
	if err := svc.Enqueue(ctx, EnqueueInput{Recipient: "S2025001", Message: "Order placed.", CartID: &liveID}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := svc.RewriteCartCorrelation(ctx, nil, liveID, placedID); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if repo.rows[0].CartID == nil || *repo.rows[0].CartID != placedID {
		t.Fatal("correlation not rewritten")
	}
}
