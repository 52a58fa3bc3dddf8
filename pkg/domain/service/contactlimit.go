package service

import (
	"github.com/pkg/errors"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

// ContactLimitPolicy decides whether a recipient may be contacted again on a channel.
// It must be evaluated right before each send since counters move between check and send.
type ContactLimitPolicy struct{}

func (ContactLimitPolicy) CanSend(recipient *model.Recipient, channel model.Channel) bool {
	if recipient == nil || !channel.Valid() {
		return false
	}
	return recipient.ContactCount(channel) < channel.MaxContacts() && recipient.Status != model.RSVPConfirmed
}

// Check is CanSend with a reason. The error names the channel and its maximum.
func (p ContactLimitPolicy) Check(recipient *model.Recipient, channel model.Channel) error {
	if !channel.Valid() {
		return errors.Wrapf(model.ErrUnsupportedChannel, "channel %q", channel)
	}
	if p.CanSend(recipient, channel) {
		return nil
	}
	return &model.LimitExceededError{
		Channel:   channel,
		Max:       channel.MaxContacts(),
		Confirmed: recipient != nil && recipient.Status == model.RSVPConfirmed,
	}
}
