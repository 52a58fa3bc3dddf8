package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RSVPStatus string

const (
	RSVPPending    RSVPStatus = "PENDING"
	RSVPConfirmed  RSVPStatus = "CONFIRMED"
	RSVPDeclined   RSVPStatus = "DECLINED"
	RSVPNoResponse RSVPStatus = "NO_RESPONSE"
)

var RSVPStatuses = []RSVPStatus{RSVPPending, RSVPConfirmed, RSVPDeclined, RSVPNoResponse}

// Recipient is an invitee of an event.
type Recipient struct {
	ID              uuid.UUID
	EventID         uuid.UUID
	FirstName       string
	LastName        string
	Phone           string
	Status          RSVPStatus
	PartySize       int
	SMSCount        int
	ChatCount       int
	VoiceCount      int
	LastContactedAt *time.Time
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r *Recipient) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ContactAddress returns the address used for the channel. Every channel currently
// reaches the recipient by phone.
func (r *Recipient) ContactAddress(channel Channel) (string, bool) {
	if !channel.Valid() {
		return "", false
	}
	phone := strings.TrimSpace(r.Phone)
	return phone, phone != ""
}

// ContactCount returns the number of successful contacts made on the channel.
func (r *Recipient) ContactCount(channel Channel) int {
	switch channel {
	case SMS:
		return r.SMSCount
	case Chat:
		return r.ChatCount
	case Voice:
		return r.VoiceCount
	}
	return 0
}

// RecipientCounterUpdate is the only way contact counters are written.
type RecipientCounterUpdate struct {
	Channel         Channel
	NewCount        int
	LastContactedAt time.Time
}

// RecipientRSVPUpdate records an attendance answer. PartySize of zero leaves the stored value.
type RecipientRSVPUpdate struct {
	Status      RSVPStatus
	ConfirmedAt *time.Time
	PartySize   int
}

type RecipientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Recipient, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]Recipient, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, update RecipientCounterUpdate) error
	UpdateRSVP(ctx context.Context, id uuid.UUID, update RecipientRSVPUpdate) error
	CountByStatus(ctx context.Context, eventID uuid.UUID, status RSVPStatus) (int, error)
}
