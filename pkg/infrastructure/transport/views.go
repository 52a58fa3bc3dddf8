package transport

import (
	"time"

	"github.com/google/uuid"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

type sendRequest struct {
	Channel string  `json:"channel"`
	Message *string `json:"message,omitempty"`
}

type bulkRequest struct {
	Channel      string      `json:"channel"`
	Message      *string     `json:"message,omitempty"`
	RecipientIDs []uuid.UUID `json:"recipientIds,omitempty"`
	InitiatedBy  string      `json:"initiatedBy,omitempty"`
}

type confirmRequest struct {
	PartySize int `json:"partySize"`
}

type notificationView struct {
	ID                uuid.UUID  `json:"id"`
	EventID           uuid.UUID  `json:"eventId"`
	RecipientID       uuid.UUID  `json:"recipientId"`
	Channel           string     `json:"channel"`
	Status            string     `json:"status"`
	Body              string     `json:"body"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	Error             string     `json:"error,omitempty"`
	BatchID           *uuid.UUID `json:"batchId,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func newNotificationView(n *model.Notification) notificationView {
	v := notificationView{
		ID:                n.ID,
		EventID:           n.EventID,
		RecipientID:       n.RecipientID,
		Channel:           n.Channel.String(),
		Status:            string(n.Status),
		Body:              n.Body,
		ProviderMessageID: n.ProviderMessageID,
		Error:             n.Error,
		SentAt:            n.SentAt,
		CreatedAt:         n.CreatedAt,
	}
	if n.BatchID.Valid {
		id := n.BatchID.UUID
		v.BatchID = &id
	}
	return v
}

func newNotificationViews(ns []model.Notification) []notificationView {
	views := make([]notificationView, 0, len(ns))
	for i := range ns {
		views = append(views, newNotificationView(&ns[i]))
	}
	return views
}

type batchView struct {
	ID              uuid.UUID         `json:"id"`
	EventID         uuid.UUID         `json:"eventId"`
	Channel         string            `json:"channel"`
	Status          string            `json:"status"`
	TotalRecipients int               `json:"totalRecipients"`
	SuccessfulCount int               `json:"successfulCount"`
	FailedCount     int               `json:"failedCount"`
	SkippedCount    int               `json:"skippedCount"`
	InitiatedBy     string            `json:"initiatedBy,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func newBatchView(b *model.NotificationBatch) batchView {
	return batchView{
		ID:              b.ID,
		EventID:         b.EventID,
		Channel:         b.Channel.String(),
		Status:          string(b.Status),
		TotalRecipients: b.TotalRecipients,
		SuccessfulCount: b.SuccessfulCount,
		FailedCount:     b.FailedCount,
		SkippedCount:    b.SkippedCount,
		InitiatedBy:     b.InitiatedBy,
		Metadata:        b.Metadata,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type outcomeView struct {
	RecipientID    uuid.UUID  `json:"recipientId"`
	Outcome        string     `json:"outcome"`
	Reason         string     `json:"reason,omitempty"`
	NotificationID *uuid.UUID `json:"notificationId,omitempty"`
}

type batchResultView struct {
	Batch      batchView     `json:"batch"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Errors     []outcomeView `json:"errors"`
	// Error is set when the messages went out but the batch could not be finalized.
	Error string `json:"error,omitempty"`
}

func newBatchResultView(r *service.BatchResult) batchResultView {
	v := batchResultView{
		Batch:      newBatchView(r.Batch),
		Successful: r.Successful,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Errors:     []outcomeView{},
	}
	for _, o := range r.Errors() {
		ov := outcomeView{RecipientID: o.RecipientID, Outcome: string(o.Outcome), Reason: o.Reason}
		if o.NotificationID.Valid {
			id := o.NotificationID.UUID
			ov.NotificationID = &id
		}
		v.Errors = append(v.Errors, ov)
	}
	return v
}

type recipientView struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"eventId"`
	FullName    string     `json:"fullName"`
	Status      string     `json:"status"`
	PartySize   int        `json:"partySize"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

func newRecipientView(r *model.Recipient) recipientView {
	return recipientView{
		ID:          r.ID,
		EventID:     r.EventID,
		FullName:    r.FullName(),
		Status:      string(r.Status),
		PartySize:   r.PartySize,
		ConfirmedAt: r.ConfirmedAt,
	}
}

type errorView struct {
	Error string `json:"error"`
}
