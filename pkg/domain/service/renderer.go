package service

import (
	"fmt"
	"strings"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

const (
	PlaceholderFirstName = "{{firstName}}"
	PlaceholderLastName  = "{{lastName}}"
	PlaceholderFullName  = "{{fullName}}"
	PlaceholderEventName = "{{eventName}}"
)

var defaultMessages = map[model.Channel]string{
	model.SMS:   "Hi %s, you are invited to our event. Please confirm your attendance. Thank you!",
	model.Chat:  "Hello %s!\nWe would love to celebrate with you.\nPlease confirm your attendance.\nSee you there!",
	model.Voice: "Hello %s. You are invited to our event. Please confirm your attendance. Goodbye.",
}

// MessageRenderer builds message bodies and voice scripts. Rendering never fails.
type MessageRenderer struct{}

// Render substitutes the known placeholders in a non-blank template and leaves anything
// else untouched. A nil or blank template yields the channel default.
func (MessageRenderer) Render(template *string, recipient *model.Recipient, event *model.Event, channel model.Channel) string {
	if template == nil || strings.TrimSpace(*template) == "" {
		return defaultMessage(recipient.FirstName, channel)
	}
	return strings.NewReplacer(
		PlaceholderFirstName, recipient.FirstName,
		PlaceholderLastName, recipient.LastName,
		PlaceholderFullName, recipient.FullName(),
		PlaceholderEventName, event.DisplayName(),
	).Replace(*template)
}

func defaultMessage(firstName string, channel model.Channel) string {
	format, ok := defaultMessages[channel]
	if !ok {
		format = defaultMessages[model.SMS]
	}
	return fmt.Sprintf(format, firstName)
}
