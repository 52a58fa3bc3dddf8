package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	Wedding    EventType = "WEDDING"
	BarMitzvah EventType = "BAR_MITZVAH"
	BatMitzvah EventType = "BAT_MITZVAH"
	Birthday   EventType = "BIRTHDAY"
	Corporate  EventType = "CORPORATE"
	OtherEvent EventType = "OTHER"
)

var eventTypeLabels = map[EventType]string{
	Wedding:    "the wedding",
	BarMitzvah: "the bar mitzvah",
	BatMitzvah: "the bat mitzvah",
	Birthday:   "the birthday party",
	Corporate:  "the company event",
}

// Event is the occasion recipients are invited to.
type Event struct {
	ID        uuid.UUID
	Name      string
	Type      EventType
	Date      time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the event name, or a label derived from the event type when the name is blank.
func (e *Event) DisplayName() string {
	if e == nil {
		return "our event"
	}
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	if label, ok := eventTypeLabels[e.Type]; ok {
		return label
	}
	return "our event"
}

type EventRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
}
