package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

type SendRequest struct {
	EventID     uuid.UUID
	RecipientID uuid.UUID
	Channel     model.Channel
	Message     *string
}

// Delivery is one attempt against an already loaded recipient with a rendered body.
type Delivery struct {
	Recipient *model.Recipient
	Event     *model.Event
	Channel   model.Channel
	Body      string
	BatchID   uuid.NullUUID
}

type ChannelSummary struct {
	Channel   model.Channel `json:"channel"`
	Contacts  int           `json:"contacts"`
	Attempts  int           `json:"attempts"`
	Max       int           `json:"max"`
	Remaining int           `json:"remaining"`
}

type ContactSummary struct {
	RecipientID uuid.UUID        `json:"recipientId"`
	Status      model.RSVPStatus `json:"status"`
	Channels    []ChannelSummary `json:"channels"`
}

type NotificationService interface {
	// Send validates, renders and delivers one message. Provider failures come back as a
	// FAILED notification with a nil error; validation and persistence failures as errors.
	Send(ctx context.Context, req SendRequest) (*model.Notification, error)
	// Deliver re-checks eligibility and performs the attempt without any lookups.
	Deliver(ctx context.Context, d Delivery) (*model.Notification, error)
	ContactSummary(ctx context.Context, recipientID uuid.UUID) (*ContactSummary, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Notification, error)
}

func NewNotificationService(
	recipients model.RecipientRepository,
	events model.EventRepository,
	repo model.NotificationRepository,
	gateway model.ProviderGateway,
	invalidator *CacheInvalidator,
	dispatcher EventDispatcher,
) NotificationService {
	return &notificationService{
		recipients:  recipients,
		events:      events,
		repo:        repo,
		gateway:     gateway,
		invalidator: invalidator,
		dispatcher:  dispatcherOrNop(dispatcher),
	}
}

type notificationService struct {
	recipients  model.RecipientRepository
	events      model.EventRepository
	repo        model.NotificationRepository
	gateway     model.ProviderGateway
	invalidator *CacheInvalidator
	dispatcher  EventDispatcher
	policy      ContactLimitPolicy
	renderer    MessageRenderer
}

func (s *notificationService) Send(ctx context.Context, req SendRequest) (*model.Notification, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.Send", trace.WithAttributes(
		attribute.String("event.id", req.EventID.String()),
		attribute.String("recipient.id", req.RecipientID.String()),
		attribute.String("channel", req.Channel.String()),
	))
	defer span.End()

	notification, err := s.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("notification.status", string(notification.Status)))
	return notification, nil
}

func (s *notificationService) send(ctx context.Context, req SendRequest) (*model.Notification, error) {
	if !req.Channel.Valid() {
		return nil, errors.Wrapf(model.ErrUnsupportedChannel, "channel %q", req.Channel)
	}

	recipient, err := s.recipients.FindByID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient.EventID != req.EventID {
		return nil, model.ErrRecipientMismatch
	}
	if err := s.checkEligible(recipient, req.Channel); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil && !errors.Is(err, model.ErrEventNotFound) {
		return nil, errors.Wrap(err, "load event")
	}

	notification, err := s.Deliver(ctx, Delivery{
		Recipient: recipient,
		Event:     event,
		Channel:   req.Channel,
		Body:      s.renderer.Render(req.Message, recipient, event, req.Channel),
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, GuestListKey(req.EventID), EventStatsKey(req.EventID))
	return notification, nil
}

func (s *notificationService) Deliver(ctx context.Context, d Delivery) (*model.Notification, error) {
	if err := s.checkEligible(d.Recipient, d.Channel); err != nil {
		return nil, err
	}
	address, _ := d.Recipient.ContactAddress(d.Channel)

	notifID, err := s.repo.NextID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	notification := &model.Notification{
		ID:          notifID,
		EventID:     d.Recipient.EventID,
		RecipientID: d.Recipient.ID,
		Channel:     d.Channel,
		Status:      model.Pending,
		Body:        d.Body,
		Address:     address,
		BatchID:     d.BatchID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result := s.transmit(ctx, d.Channel, address, d.Body)
	notification.Record(result, time.Now().UTC())

	if err := s.repo.Save(ctx, notification); err != nil {
		return nil, errors.Wrap(err, "save notification")
	}

	if notification.Status != model.Sent {
		_ = s.dispatcher.Dispatch(model.NotificationFailed{
			NotificationID: notifID, EventID: notification.EventID, RecipientID: notification.RecipientID,
			Channel: d.Channel, BatchID: d.BatchID, Reason: notification.Error,
		})
		return notification, nil
	}

	update := model.RecipientCounterUpdate{
		Channel:         d.Channel,
		NewCount:        d.Recipient.ContactCount(d.Channel) + 1,
		LastContactedAt: *notification.SentAt,
	}
	if err := s.recipients.UpdateCounters(ctx, d.Recipient.ID, update); err != nil {
		return nil, errors.Wrap(err, "update recipient counters")
	}
	applyCounterUpdate(d.Recipient, update)

	_ = s.dispatcher.Dispatch(model.NotificationSent{
		NotificationID: notifID, EventID: notification.EventID, RecipientID: notification.RecipientID,
		Channel: d.Channel, BatchID: d.BatchID,
	})
	return notification, nil
}

func (s *notificationService) ContactSummary(ctx context.Context, recipientID uuid.UUID) (*ContactSummary, error) {
	recipient, err := s.recipients.FindByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	summary := &ContactSummary{RecipientID: recipientID, Status: recipient.Status}
	for _, channel := range model.Channels {
		attempts, err := s.repo.CountByRecipientAndChannel(ctx, recipientID, channel)
		if err != nil {
			return nil, errors.Wrapf(err, "count %s notifications", channel)
		}
		contacts := recipient.ContactCount(channel)
		remaining := channel.MaxContacts() - contacts
		if remaining < 0 || recipient.Status == model.RSVPConfirmed {
			remaining = 0
		}
		summary.Channels = append(summary.Channels, ChannelSummary{
			Channel:   channel,
			Contacts:  contacts,
			Attempts:  attempts,
			Max:       channel.MaxContacts(),
			Remaining: remaining,
		})
	}
	return summary, nil
}

func (s *notificationService) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	return s.repo.FindByRecipientID(ctx, recipientID)
}

func (s *notificationService) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Notification, error) {
	return s.repo.FindByEventID(ctx, eventID)
}

func (s *notificationService) checkEligible(recipient *model.Recipient, channel model.Channel) error {
	if recipient == nil {
		return model.ErrRecipientNotFound
	}
	if !channel.Valid() {
		return errors.Wrapf(model.ErrUnsupportedChannel, "channel %q", channel)
	}
	if _, ok := recipient.ContactAddress(channel); !ok {
		return model.ErrNoContactAddress
	}
	return s.policy.Check(recipient, channel)
}

func (s *notificationService) transmit(ctx context.Context, channel model.Channel, address, body string) model.SendResult {
	switch channel {
	case model.SMS:
		return s.gateway.SendSMS(ctx, address, body)
	case model.Chat:
		return s.gateway.SendChatMessage(ctx, address, body)
	case model.Voice:
		return s.gateway.MakeVoiceCall(ctx, address, body)
	}
	return model.SendResult{Error: model.ErrUnsupportedChannel.Error()}
}

func applyCounterUpdate(r *model.Recipient, update model.RecipientCounterUpdate) {
	switch update.Channel {
	case model.SMS:
		r.SMSCount = update.NewCount
	case model.Chat:
		r.ChatCount = update.NewCount
	case model.Voice:
		r.VoiceCount = update.NewCount
	}
	contactedAt := update.LastContactedAt
	r.LastContactedAt = &contactedAt
}
