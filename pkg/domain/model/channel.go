package model

import (
	"strings"

	"github.com/pkg/errors"
)

type Channel string

const (
	SMS   Channel = "SMS"
	Chat  Channel = "CHAT"
	Voice Channel = "VOICE"
)

// Channels lists every supported channel in display order.
var Channels = []Channel{SMS, Chat, Voice}

var maxContacts = map[Channel]int{
	SMS:   2,
	Chat:  3,
	Voice: 4,
}

// MaxContacts returns the contact budget of the channel, zero for unknown channels.
func (c Channel) MaxContacts() int {
	return maxContacts[c]
}

func (c Channel) Valid() bool {
	_, ok := maxContacts[c]
	return ok
}

func (c Channel) String() string { return string(c) }

// ParseChannel accepts the canonical names case-insensitively; WHATSAPP and PHONE_CALL are
// accepted as aliases of CHAT and VOICE.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SMS":
		return SMS, nil
	case "CHAT", "WHATSAPP":
		return Chat, nil
	case "VOICE", "PHONE_CALL":
		return Voice, nil
	}
	return "", errors.Wrapf(ErrUnsupportedChannel, "channel %q", s)
}
