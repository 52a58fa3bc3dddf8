package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

type dispatchFixture struct {
	service       service.DispatchService
	recipients    *mockRecipientRepository
	notifications *mockNotificationRepository
	batches       *mockBatchRepository
	gateway       *mockProviderGateway
	cache         *mockCache
	dispatcher    *mockEventDispatcher
	event         model.Event
}

func setupDispatch(t *testing.T, workers int) *dispatchFixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	f := &dispatchFixture{
		recipients:    newMockRecipientRepository(),
		notifications: newMockNotificationRepository(),
		batches:       newMockBatchRepository(),
		gateway:       newMockProviderGateway(),
		cache:         newMockCache(),
		dispatcher:    &mockEventDispatcher{},
		event:         model.Event{ID: uuid.New(), Name: "Maya's Bat Mitzvah", Type: model.BatMitzvah},
	}
	events := newMockEventRepository(f.event)
	invalidator := service.NewCacheInvalidator(f.cache, logger)
	sender := service.NewNotificationService(f.recipients, events, f.notifications, f.gateway, invalidator, f.dispatcher)
	f.service = service.NewDispatchService(
		f.recipients, events, f.batches, f.notifications, sender, invalidator, f.dispatcher, logger,
		service.DispatchOptions{Workers: workers},
	)
	return f
}

func (f *dispatchFixture) addRecipients(n int) []model.Recipient {
	out := make([]model.Recipient, 0, n)
	for i := 0; i < n; i++ {
		r := newRecipient(f.event.ID, fmt.Sprintf("Guest%d", i+1), fmt.Sprintf("+97250000%04d", i+1))
		f.recipients.add(r)
		out = append(out, r)
	}
	return out
}

func TestDispatchMixedOutcomes(t *testing.T) {
	ctx := context.Background()
	f := setupDispatch(t, 3)
	recipients := f.addRecipients(5)

	// #3 has no phone, #5 is rejected by the provider.
	noPhone := recipients[2]
	noPhone.Phone = ""
	f.recipients.add(noPhone)
	f.gateway.failFor[recipients[4].Phone] = "number unreachable"

	result, err := f.service.Dispatch(ctx, service.DispatchRequest{
		EventID: f.event.ID, Channel: model.SMS, InitiatedBy: "host@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	batch := result.Batch
	assert.Equal(t, model.BatchCompletedWithErrors, batch.Status)
	assert.Equal(t, 5, batch.TotalRecipients)
	assert.Equal(t, batch.TotalRecipients, batch.SuccessfulCount+batch.FailedCount+batch.SkippedCount)
	assert.Equal(t, "host@example.com", batch.InitiatedBy)

	stored, err := f.service.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompletedWithErrors, stored.Status)
	assert.Equal(t, []model.BatchStatus{model.BatchPending, model.BatchProcessing, model.BatchCompletedWithErrors}, f.batches.history)

	require.Len(t, result.Outcomes, 5)
	for i, o := range result.Outcomes {
		assert.Equal(t, recipients[i].ID, o.RecipientID)
	}
	assert.Equal(t, service.OutcomeSkipped, result.Outcomes[2].Outcome)
	assert.Equal(t, model.ErrNoContactAddress.Error(), result.Outcomes[2].Reason)
	assert.Equal(t, service.OutcomeFailed, result.Outcomes[4].Outcome)
	assert.Equal(t, "number unreachable", result.Outcomes[4].Reason)
	assert.True(t, result.Outcomes[4].NotificationID.Valid)
	assert.Len(t, result.Errors(), 2)

	notifications, err := f.service.BatchNotifications(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 4)
	for _, n := range notifications {
		assert.Equal(t, batch.ID, n.BatchID.UUID)
	}

	assert.Equal(t, 1, f.recipients.get(recipients[0].ID).SMSCount)
	assert.Equal(t, 0, f.recipients.get(recipients[2].ID).SMSCount)
	assert.Equal(t, 0, f.recipients.get(recipients[4].ID).SMSCount)

	assert.Contains(t, f.dispatcher.types(), "NotificationBatchCompleted")
	assert.Contains(t, f.cache.deleted, "event:"+f.event.ID.String()+":stats")
}

func TestDispatchTargetResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicates and unknown ids", func(t *testing.T) {
		f := setupDispatch(t, 2)
		recipients := f.addRecipients(3)

		result, err := f.service.Dispatch(ctx, service.DispatchRequest{
			EventID: f.event.ID,
			Channel: model.Chat,
			RecipientIDs: []uuid.UUID{
				recipients[1].ID, recipients[0].ID, recipients[1].ID, uuid.New(), recipients[0].ID,
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Batch.TotalRecipients)
		assert.Equal(t, 2, result.Successful)
		assert.Equal(t, model.BatchCompleted, result.Batch.Status)
		require.Len(t, result.Outcomes, 2)
		assert.Equal(t, recipients[1].ID, result.Outcomes[0].RecipientID)
		assert.Equal(t, recipients[0].ID, result.Outcomes[1].RecipientID)
		assert.Equal(t, 2, f.gateway.sentCount())
	})

	t.Run("Only unknown ids", func(t *testing.T) {
		f := setupDispatch(t, 2)
		f.addRecipients(3)

		result, err := f.service.Dispatch(ctx, service.DispatchRequest{
			EventID: f.event.ID, Channel: model.SMS, RecipientIDs: []uuid.UUID{uuid.New(), uuid.New()},
		})
		assert.ErrorIs(t, err, model.ErrEmptyTargetSet)
		assert.Nil(t, result)
		assert.Empty(t, f.batches.store)
		assert.Zero(t, f.gateway.sentCount())
	})

	t.Run("Event without recipients", func(t *testing.T) {
		f := setupDispatch(t, 2)
		_, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
		assert.ErrorIs(t, err, model.ErrNoRecipients)
		assert.Empty(t, f.batches.store)
	})

	t.Run("Unknown event", func(t *testing.T) {
		f := setupDispatch(t, 2)
		f.addRecipients(1)
		_, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: uuid.New(), Channel: model.SMS})
		assert.ErrorIs(t, err, model.ErrEventNotFound)
	})

	t.Run("Unsupported channel", func(t *testing.T) {
		f := setupDispatch(t, 2)
		f.addRecipients(1)
		_, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: "FAX"})
		assert.ErrorIs(t, err, model.ErrUnsupportedChannel)
	})
}

func TestDispatchPersonalisesEachMessage(t *testing.T) {
	ctx := context.Background()
	f := setupDispatch(t, 4)
	recipients := f.addRecipients(3)

	tmpl := "Dear {{fullName}}, {{eventName}} is coming up!"
	result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.Chat, Message: &tmpl})
	require.NoError(t, err)
	assert.Equal(t, tmpl, result.Batch.Message)
	assert.Equal(t, tmpl, result.Batch.Metadata[model.MetadataMessagePreview])

	bodies := map[string]bool{}
	for _, m := range f.gateway.sent {
		bodies[m.Body] = true
	}
	for _, r := range recipients {
		assert.True(t, bodies["Dear "+r.FirstName+" Levi, Maya's Bat Mitzvah is coming up!"], r.FirstName)
	}
}

func TestDispatchLimitReachedCountsAsFailed(t *testing.T) {
	ctx := context.Background()
	f := setupDispatch(t, 2)
	recipients := f.addRecipients(2)

	exhausted := recipients[0]
	exhausted.SMSCount = 2
	f.recipients.add(exhausted)
	confirmed := recipients[1]
	confirmed.Status = model.RSVPConfirmed
	f.recipients.add(confirmed)

	result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, model.BatchCompletedWithErrors, result.Batch.Status)
	for _, o := range result.Outcomes {
		assert.Equal(t, service.OutcomeFailed, o.Outcome)
		assert.False(t, o.NotificationID.Valid)
	}
	assert.Contains(t, result.Outcomes[0].Reason, "maximum 2 SMS")
	assert.Equal(t, 2, f.recipients.get(exhausted.ID).SMSCount)
	assert.Zero(t, f.gateway.sentCount())
}

func TestDispatchNotificationSaveFailureCountsAsFailed(t *testing.T) {
	ctx := context.Background()
	f := setupDispatch(t, 2)
	recipients := f.addRecipients(3)
	f.notifications.saveErr = errStorage

	result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, model.BatchCompletedWithErrors, result.Batch.Status)
	assert.Equal(t, []model.BatchStatus{model.BatchPending, model.BatchProcessing, model.BatchCompletedWithErrors},
		f.batches.history)

	require.Len(t, result.Outcomes, 3)
	for i, o := range result.Outcomes {
		assert.Equal(t, recipients[i].ID, o.RecipientID)
		assert.Equal(t, service.OutcomeFailed, o.Outcome)
		assert.Contains(t, o.Reason, errStorage.Error())
		assert.False(t, o.NotificationID.Valid)
	}
	for _, r := range recipients {
		assert.Zero(t, f.recipients.get(r.ID).SMSCount)
	}

	// The provider was reached; only the bookkeeping failed.
	assert.Equal(t, 3, f.gateway.sentCount())
	assert.NotContains(t, f.dispatcher.types(), "NotificationBatchFailed")
}

func TestDispatchBoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	f := setupDispatch(t, 4)
	f.gateway.delay = 2 * time.Millisecond
	recipients := f.addRecipients(40)

	result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.Voice})
	require.NoError(t, err)

	assert.Equal(t, 40, result.Successful)
	assert.Equal(t, model.BatchCompleted, result.Batch.Status)
	assert.LessOrEqual(t, f.gateway.maxSeen, 4)
	for _, r := range recipients {
		assert.Equal(t, 1, f.recipients.get(r.ID).VoiceCount)
	}
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	f := setupDispatch(t, 1)
	f.gateway.delay = time.Millisecond
	f.addRecipients(5)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()

	result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Successful)
	assert.Equal(t, model.BatchCompleted, result.Batch.Status)
}

func TestDispatchBookkeepingFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Batch cannot be created", func(t *testing.T) {
		f := setupDispatch(t, 2)
		f.addRecipients(2)
		f.batches.createErr = errStorage

		_, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
		assert.ErrorIs(t, err, errStorage)
		assert.Zero(t, f.gateway.sentCount())
	})

	t.Run("Terminal state cannot be stored", func(t *testing.T) {
		f := setupDispatch(t, 2)
		f.addRecipients(3)
		f.batches.updateErr = errStorage
		f.batches.failUpdateOn = model.BatchCompleted

		result, err := f.service.Dispatch(ctx, service.DispatchRequest{EventID: f.event.ID, Channel: model.SMS})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBatchFinalization)
		assert.ErrorIs(t, err, errStorage)
		var finalization *model.BatchFinalizationError
		require.ErrorAs(t, err, &finalization)
		require.NotNil(t, result)
		assert.Equal(t, result.Batch.ID, finalization.BatchID)

		assert.Equal(t, 3, result.Successful)
		assert.Equal(t, model.BatchFailed, result.Batch.Status)
		assert.Contains(t, result.Batch.Metadata[model.MetadataFailureReason], errStorage.Error())

		stored, findErr := f.batches.FindByID(ctx, result.Batch.ID)
		require.NoError(t, findErr)
		assert.Equal(t, model.BatchFailed, stored.Status)
		assert.Contains(t, f.dispatcher.types(), "NotificationBatchFailed")
		assert.NotContains(t, f.dispatcher.types(), "NotificationBatchCompleted")
	})

	t.Run("Unknown batch", func(t *testing.T) {
		f := setupDispatch(t, 2)
		_, err := f.service.GetBatch(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrBatchNotFound)
		_, err = f.service.BatchNotifications(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrBatchNotFound)
	})
}
