package model

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type BatchStatus string

const (
	BatchPending             BatchStatus = "PENDING"
	BatchProcessing          BatchStatus = "PROCESSING"
	BatchCompleted           BatchStatus = "COMPLETED"
	BatchCompletedWithErrors BatchStatus = "COMPLETED_WITH_ERRORS"
	BatchFailed              BatchStatus = "FAILED"
)

func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchCompleted, BatchCompletedWithErrors, BatchFailed:
		return true
	}
	return false
}

const (
	MetadataMessagePreview = "messagePreview"
	MetadataFailureReason  = "failureReason"

	messagePreviewLength = 120
)

// NotificationBatch tracks one bulk dispatch. TotalRecipients is fixed at creation.
type NotificationBatch struct {
	ID              uuid.UUID
	EventID         uuid.UUID
	Channel         Channel
	Message         string
	TotalRecipients int
	SuccessfulCount int
	FailedCount     int
	SkippedCount    int
	Status          BatchStatus
	InitiatedBy     string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewNotificationBatch(id, eventID uuid.UUID, channel Channel, message string, total int, initiatedBy string, now time.Time) (*NotificationBatch, error) {
	if total <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if !channel.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedChannel, "channel %q", channel)
	}
	metadata := map[string]string{}
	if message != "" {
		metadata[MetadataMessagePreview] = preview(message)
	}
	return &NotificationBatch{
		ID:              id,
		EventID:         eventID,
		Channel:         channel,
		Message:         message,
		TotalRecipients: total,
		Status:          BatchPending,
		InitiatedBy:     initiatedBy,
		Metadata:        metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (b *NotificationBatch) MarkProcessing(now time.Time) error {
	if b.Status != BatchPending {
		return b.transitionError(BatchProcessing)
	}
	b.Status = BatchProcessing
	b.UpdatedAt = now
	return nil
}

// Complete records the final counts and moves the batch to its terminal state.
func (b *NotificationBatch) Complete(successful, failed, skipped int, now time.Time) error {
	if b.Status != BatchProcessing {
		return b.transitionError(BatchCompleted)
	}
	if successful < 0 || failed < 0 || skipped < 0 || successful+failed+skipped != b.TotalRecipients {
		return errors.Wrapf(ErrInvalidBatchTransition,
			"counts %d+%d+%d do not add up to %d recipients", successful, failed, skipped, b.TotalRecipients)
	}
	b.SuccessfulCount = successful
	b.FailedCount = failed
	b.SkippedCount = skipped
	b.Status = BatchCompleted
	if failed > 0 {
		b.Status = BatchCompletedWithErrors
	}
	b.UpdatedAt = now
	return nil
}

func (b *NotificationBatch) Fail(reason string, now time.Time) error {
	if b.Status.Terminal() {
		return b.transitionError(BatchFailed)
	}
	if b.Metadata == nil {
		b.Metadata = map[string]string{}
	}
	if reason != "" {
		b.Metadata[MetadataFailureReason] = reason
	}
	b.Status = BatchFailed
	b.UpdatedAt = now
	return nil
}

func (b *NotificationBatch) transitionError(to BatchStatus) error {
	return errors.Wrapf(ErrInvalidBatchTransition, "%s -> %s", b.Status, to)
}

func preview(message string) string {
	if utf8.RuneCountInString(message) <= messagePreviewLength {
		return message
	}
	return string([]rune(message)[:messagePreviewLength])
}

type BatchRepository interface {
	NextID() (uuid.UUID, error)
	Create(ctx context.Context, batch *NotificationBatch) error
	Update(ctx context.Context, batch *NotificationBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*NotificationBatch, error)
}
