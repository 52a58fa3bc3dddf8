package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

const DefaultStatsTTL = 5 * time.Minute

type ConfirmRequest struct {
	RecipientID uuid.UUID
	// PartySize of zero keeps the stored value.
	PartySize int
}

type EventStats struct {
	EventID          uuid.UUID `json:"eventId"`
	Total            int       `json:"total"`
	Pending          int       `json:"pending"`
	Confirmed        int       `json:"confirmed"`
	Declined         int       `json:"declined"`
	NoResponse       int       `json:"noResponse"`
	ConfirmationRate float64   `json:"confirmationRate"`
	ResponseRate     float64   `json:"responseRate"`
}

type RecipientService interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*model.Recipient, error)
	Decline(ctx context.Context, recipientID uuid.UUID) (*model.Recipient, error)
	// EventStats is served from the cache when possible.
	EventStats(ctx context.Context, eventID uuid.UUID) (*EventStats, error)
}

func NewRecipientService(
	repo model.RecipientRepository,
	cache model.Cache,
	invalidator *CacheInvalidator,
	dispatcher EventDispatcher,
	logger logrus.FieldLogger,
	statsTTL time.Duration,
) RecipientService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	return &recipientService{
		repo:        repo,
		cache:       cache,
		invalidator: invalidator,
		dispatcher:  dispatcherOrNop(dispatcher),
		logger:      logger,
		statsTTL:    statsTTL,
	}
}

type recipientService struct {
	repo        model.RecipientRepository
	cache       model.Cache
	invalidator *CacheInvalidator
	dispatcher  EventDispatcher
	logger      logrus.FieldLogger
	statsTTL    time.Duration
}

func (s *recipientService) Confirm(ctx context.Context, req ConfirmRequest) (*model.Recipient, error) {
	if req.PartySize < 0 {
		return nil, model.ErrInvalidPartySize
	}
	recipient, err := s.repo.FindByID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient.Status == model.RSVPConfirmed {
		return nil, model.ErrAlreadyConfirmed
	}

	now := time.Now().UTC()
	update := model.RecipientRSVPUpdate{Status: model.RSVPConfirmed, ConfirmedAt: &now, PartySize: req.PartySize}
	if err := s.repo.UpdateRSVP(ctx, recipient.ID, update); err != nil {
		return nil, errors.Wrap(err, "confirm recipient")
	}
	recipient.Status = model.RSVPConfirmed
	recipient.ConfirmedAt = &now
	if req.PartySize > 0 {
		recipient.PartySize = req.PartySize
	}
	recipient.UpdatedAt = now

	s.invalidateRSVP(ctx, recipient.EventID)
	_ = s.dispatcher.Dispatch(model.RecipientConfirmed{
		RecipientID: recipient.ID, EventID: recipient.EventID, PartySize: recipient.PartySize,
	})
	return recipient, nil
}

func (s *recipientService) Decline(ctx context.Context, recipientID uuid.UUID) (*model.Recipient, error) {
	recipient, err := s.repo.FindByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.Status == model.RSVPDeclined {
		return nil, model.ErrAlreadyDeclined
	}

	if err := s.repo.UpdateRSVP(ctx, recipient.ID, model.RecipientRSVPUpdate{Status: model.RSVPDeclined}); err != nil {
		return nil, errors.Wrap(err, "decline recipient")
	}
	recipient.Status = model.RSVPDeclined
	recipient.ConfirmedAt = nil
	recipient.UpdatedAt = time.Now().UTC()

	s.invalidateRSVP(ctx, recipient.EventID)
	_ = s.dispatcher.Dispatch(model.RecipientDeclined{RecipientID: recipient.ID, EventID: recipient.EventID})
	return recipient, nil
}

func (s *recipientService) EventStats(ctx context.Context, eventID uuid.UUID) (*EventStats, error) {
	key := EventStatsKey(eventID)
	log := s.logger.WithField("key", key)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var stats EventStats
			if err := json.Unmarshal(cached, &stats); err == nil {
				return &stats, nil
			}
			log.Warn("discarding malformed cached event stats")
		case !errors.Is(err, model.ErrCacheMiss):
			log.WithError(err).Warn("event stats cache read failed")
		}
	}

	stats := &EventStats{EventID: eventID}
	for _, status := range model.RSVPStatuses {
		n, err := s.repo.CountByStatus(ctx, eventID, status)
		if err != nil {
			return nil, errors.Wrapf(err, "count %s recipients", status)
		}
		switch status {
		case model.RSVPPending:
			stats.Pending = n
		case model.RSVPConfirmed:
			stats.Confirmed = n
		case model.RSVPDeclined:
			stats.Declined = n
		case model.RSVPNoResponse:
			stats.NoResponse = n
		}
		stats.Total += n
	}
	if stats.Total > 0 {
		stats.ConfirmationRate = float64(stats.Confirmed) / float64(stats.Total) * 100
		stats.ResponseRate = float64(stats.Confirmed+stats.Declined) / float64(stats.Total) * 100
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.statsTTL); err != nil {
				log.WithError(err).Warn("event stats cache write failed")
			}
		}
	}
	return stats, nil
}

func (s *recipientService) invalidateRSVP(ctx context.Context, eventID uuid.UUID) {
	s.invalidator.Invalidate(ctx,
		GuestListKey(eventID),
		EventKey(eventID),
		EventStatsKey(eventID),
		TableOccupancyKey(eventID),
	)
}
