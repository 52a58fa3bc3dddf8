package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

const DefaultDispatchWorkers = 8

type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
)

type DispatchRequest struct {
	EventID      uuid.UUID
	Channel      model.Channel
	Message      *string
	RecipientIDs []uuid.UUID
	InitiatedBy  string
}

type RecipientOutcome struct {
	RecipientID    uuid.UUID
	Outcome        Outcome
	Reason         string
	NotificationID uuid.NullUUID
}

type BatchResult struct {
	Batch      *model.NotificationBatch
	Successful int
	Failed     int
	Skipped    int
	// Outcomes follow the order of the resolved target set.
	Outcomes []RecipientOutcome
}

// Errors returns the outcomes that were not successful.
func (r *BatchResult) Errors() []RecipientOutcome {
	var errs []RecipientOutcome
	for _, o := range r.Outcomes {
		if o.Outcome != OutcomeSuccessful {
			errs = append(errs, o)
		}
	}
	return errs
}

type DispatchService interface {
	// Dispatch sends one message to every target recipient of an event. Only target
	// resolution and batch bookkeeping fail the call; per-recipient problems are reported
	// in the result. When the terminal batch state cannot be stored, the result is returned
	// together with a *model.BatchFinalizationError.
	Dispatch(ctx context.Context, req DispatchRequest) (*BatchResult, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*model.NotificationBatch, error)
	BatchNotifications(ctx context.Context, batchID uuid.UUID) ([]model.Notification, error)
}

type DispatchOptions struct {
	Workers int
}

func NewDispatchService(
	recipients model.RecipientRepository,
	events model.EventRepository,
	batches model.BatchRepository,
	notifications model.NotificationRepository,
	sender NotificationService,
	invalidator *CacheInvalidator,
	dispatcher EventDispatcher,
	logger logrus.FieldLogger,
	opts DispatchOptions,
) DispatchService {
	if opts.Workers <= 0 {
		opts.Workers = DefaultDispatchWorkers
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &dispatchService{
		recipients:    recipients,
		events:        events,
		batches:       batches,
		notifications: notifications,
		sender:        sender,
		invalidator:   invalidator,
		dispatcher:    dispatcherOrNop(dispatcher),
		logger:        logger,
		workers:       opts.Workers,
	}
}

type dispatchService struct {
	recipients    model.RecipientRepository
	events        model.EventRepository
	batches       model.BatchRepository
	notifications model.NotificationRepository
	sender        NotificationService
	invalidator   *CacheInvalidator
	dispatcher    EventDispatcher
	logger        logrus.FieldLogger
	renderer      MessageRenderer
	workers       int
}

type indexedOutcome struct {
	index   int
	outcome RecipientOutcome
}

func (s *dispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "DispatchService.Dispatch", trace.WithAttributes(
		attribute.String("event.id", req.EventID.String()),
		attribute.String("channel", req.Channel.String()),
	))
	defer span.End()

	result, err := s.dispatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if result != nil {
		span.SetAttributes(
			attribute.String("batch.id", result.Batch.ID.String()),
			attribute.Int("batch.successful", result.Successful),
			attribute.Int("batch.failed", result.Failed),
			attribute.Int("batch.skipped", result.Skipped),
		)
	}
	return result, err
}

func (s *dispatchService) dispatch(ctx context.Context, req DispatchRequest) (*BatchResult, error) {
	if !req.Channel.Valid() {
		return nil, errors.Wrapf(model.ErrUnsupportedChannel, "channel %q", req.Channel)
	}

	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipients.FindByEventID(ctx, req.EventID)
	if err != nil {
		return nil, errors.Wrap(err, "load event recipients")
	}
	if len(recipients) == 0 {
		return nil, model.ErrNoRecipients
	}
	targets := resolveTargets(recipients, req.RecipientIDs)
	if len(targets) == 0 {
		return nil, model.ErrEmptyTargetSet
	}

	batchID, err := s.batches.NextID()
	if err != nil {
		return nil, err
	}
	var message string
	if req.Message != nil {
		message = *req.Message
	}
	batch, err := model.NewNotificationBatch(batchID, req.EventID, req.Channel, message, len(targets), req.InitiatedBy, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "create notification batch")
	}
	if err := batch.MarkProcessing(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "mark notification batch processing")
	}

	log := s.logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"event_id": batch.EventID,
		"channel":  batch.Channel,
	})
	log.WithField("recipients", batch.TotalRecipients).Info("bulk dispatch started")

	// Once started a batch runs over its whole target set.
	runCtx := context.WithoutCancel(ctx)
	result := reduceOutcomes(s.run(runCtx, batch, event, targets, req.Message))

	s.invalidator.Invalidate(runCtx, GuestListKey(req.EventID), EventStatsKey(req.EventID))

	completed := *batch
	completed.Metadata = cloneMetadata(batch.Metadata)
	err = completed.Complete(result.Successful, result.Failed, result.Skipped, time.Now().UTC())
	if err == nil {
		err = s.batches.Update(runCtx, &completed)
	}
	if err != nil {
		s.fail(runCtx, batch, err, log)
		result.Batch = batch
		return result, &model.BatchFinalizationError{BatchID: batch.ID, Err: err}
	}
	result.Batch = &completed

	_ = s.dispatcher.Dispatch(model.NotificationBatchCompleted{
		BatchID:    completed.ID,
		EventID:    completed.EventID,
		Channel:    completed.Channel,
		Status:     completed.Status,
		Successful: result.Successful,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
	})
	log.WithFields(logrus.Fields{
		"status":     completed.Status,
		"successful": result.Successful,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
	}).Info("bulk dispatch completed")
	return result, nil
}

func (s *dispatchService) run(ctx context.Context, batch *model.NotificationBatch, event *model.Event, targets []model.Recipient, template *string) []RecipientOutcome {
	results := make(chan indexedOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range targets {
		recipient := targets[i]
		g.Go(func() error {
			results <- indexedOutcome{index: i, outcome: s.dispatchOne(ctx, batch, event, &recipient, template)}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	outcomes := make([]RecipientOutcome, len(targets))
	for r := range results {
		outcomes[r.index] = r.outcome
	}
	return outcomes
}

func (s *dispatchService) dispatchOne(ctx context.Context, batch *model.NotificationBatch, event *model.Event, recipient *model.Recipient, template *string) RecipientOutcome {
	outcome := RecipientOutcome{RecipientID: recipient.ID}

	if _, ok := recipient.ContactAddress(batch.Channel); !ok {
		outcome.Outcome = OutcomeSkipped
		outcome.Reason = model.ErrNoContactAddress.Error()
		return outcome
	}

	notification, err := s.sender.Deliver(ctx, Delivery{
		Recipient: recipient,
		Event:     event,
		Channel:   batch.Channel,
		Body:      s.renderer.Render(template, recipient, event, batch.Channel),
		BatchID:   uuid.NullUUID{UUID: batch.ID, Valid: true},
	})
	if err != nil {
		outcome.Outcome = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.NotificationID = uuid.NullUUID{UUID: notification.ID, Valid: true}
	if notification.Status == model.Sent {
		outcome.Outcome = OutcomeSuccessful
		return outcome
	}
	outcome.Outcome = OutcomeFailed
	outcome.Reason = notification.Error
	return outcome
}

func (s *dispatchService) fail(ctx context.Context, batch *model.NotificationBatch, cause error, log logrus.FieldLogger) {
	log.WithError(cause).Error("notification batch could not be finalized")
	if err := batch.Fail(cause.Error(), time.Now().UTC()); err != nil {
		log.WithError(err).Error("mark notification batch failed")
		return
	}
	if err := s.batches.Update(ctx, batch); err != nil {
		log.WithError(err).Error("store failed notification batch")
	}
	_ = s.dispatcher.Dispatch(model.NotificationBatchFailed{BatchID: batch.ID, EventID: batch.EventID, Reason: cause.Error()})
}

func (s *dispatchService) GetBatch(ctx context.Context, batchID uuid.UUID) (*model.NotificationBatch, error) {
	return s.batches.FindByID(ctx, batchID)
}

func (s *dispatchService) BatchNotifications(ctx context.Context, batchID uuid.UUID) ([]model.Notification, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.notifications.FindByBatchID(ctx, batchID)
}

// resolveTargets keeps every event recipient when ids is empty, otherwise the distinct
// known ids in first-seen order. Unknown ids are dropped.
func resolveTargets(recipients []model.Recipient, ids []uuid.UUID) []model.Recipient {
	if len(ids) == 0 {
		return recipients
	}
	byID := make(map[uuid.UUID]int, len(recipients))
	for i, r := range recipients {
		byID[r.ID] = i
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	targets := make([]model.Recipient, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if i, ok := byID[id]; ok {
			targets = append(targets, recipients[i])
		}
	}
	return targets
}

func reduceOutcomes(outcomes []RecipientOutcome) *BatchResult {
	result := &BatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Outcome {
		case OutcomeSuccessful:
			result.Successful++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
