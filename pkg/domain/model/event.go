package model

import "github.com/google/uuid"

type NotificationSent struct {
	NotificationID uuid.UUID
	EventID        uuid.UUID
	RecipientID    uuid.UUID
	Channel        Channel
	BatchID        uuid.NullUUID
}

func (e NotificationSent) Type() string { return "NotificationSent" }

type NotificationFailed struct {
	NotificationID uuid.UUID
	EventID        uuid.UUID
	RecipientID    uuid.UUID
	Channel        Channel
	BatchID        uuid.NullUUID
	Reason         string
}

func (e NotificationFailed) Type() string { return "NotificationFailed" }

type NotificationBatchCompleted struct {
	BatchID    uuid.UUID
	EventID    uuid.UUID
	Channel    Channel
	Status     BatchStatus
	Successful int
	Failed     int
	Skipped    int
}

func (e NotificationBatchCompleted) Type() string { return "NotificationBatchCompleted" }

type NotificationBatchFailed struct {
	BatchID uuid.UUID
	EventID uuid.UUID
	Reason  string
}

func (e NotificationBatchFailed) Type() string { return "NotificationBatchFailed" }

type RecipientConfirmed struct {
	RecipientID uuid.UUID
	EventID     uuid.UUID
	PartySize   int
}

func (e RecipientConfirmed) Type() string { return "RecipientConfirmed" }

type RecipientDeclined struct {
	RecipientID uuid.UUID
	EventID     uuid.UUID
}

func (e RecipientDeclined) Type() string { return "RecipientDeclined" }
