package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	Pending   NotificationStatus = "PENDING"
	Sent      NotificationStatus = "SENT"
	Delivered NotificationStatus = "DELIVERED"
	Failed    NotificationStatus = "FAILED"
)

// Notification is one contact attempt. Body and Channel never change after creation.
type Notification struct {
	ID                uuid.UUID
	EventID           uuid.UUID
	RecipientID       uuid.UUID
	Channel           Channel
	Status            NotificationStatus
	Body              string
	Address           string
	ProviderMessageID string
	Error             string
	BatchID           uuid.NullUUID
	SentAt            *time.Time
	DeliveredAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Record applies the gateway outcome to a pending notification.
func (n *Notification) Record(result SendResult, now time.Time) {
	n.ProviderMessageID = result.ProviderMessageID
	n.UpdatedAt = now
	if result.Success {
		n.Status = Sent
		n.Error = ""
		n.SentAt = &now
		return
	}
	n.Status = Failed
	n.Error = result.Error
	if n.Error == "" {
		n.Error = "unknown provider error"
	}
}

type NotificationRepository interface {
	NextID() (uuid.UUID, error)
	Save(ctx context.Context, notification *Notification) error
	CountByRecipientAndChannel(ctx context.Context, recipientID uuid.UUID, channel Channel) (int, error)
	FindByRecipientID(ctx context.Context, recipientID uuid.UUID) ([]Notification, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]Notification, error)
	FindByBatchID(ctx context.Context, batchID uuid.UUID) ([]Notification, error)
}

// SendResult is what a provider reports for one attempt.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// ProviderGateway transmits messages. Ordinary transport failures are reported through
// SendResult, never as panics or errors.
type ProviderGateway interface {
	SendSMS(ctx context.Context, address, body string) SendResult
	SendChatMessage(ctx context.Context, address, body string) SendResult
	MakeVoiceCall(ctx context.Context, address, script string) SendResult
}
