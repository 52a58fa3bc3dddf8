package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

func newBatch(t *testing.T, total int) *model.NotificationBatch {
	t.Helper()
	b, err := model.NewNotificationBatch(uuid.New(), uuid.New(), model.SMS, "Hello", total, "admin", time.Now().UTC())
	require.NoError(t, err)
	return b
}

func TestNotificationBatchLifecycle(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Clean run", func(t *testing.T) {
		b := newBatch(t, 3)
		assert.Equal(t, model.BatchPending, b.Status)
		assert.Equal(t, "Hello", b.Metadata[model.MetadataMessagePreview])

		require.NoError(t, b.MarkProcessing(now))
		require.NoError(t, b.Complete(2, 0, 1, now))
		assert.Equal(t, model.BatchCompleted, b.Status)
		assert.True(t, b.Status.Terminal())
	})

	t.Run("Failures mark the batch", func(t *testing.T) {
		b := newBatch(t, 5)
		require.NoError(t, b.MarkProcessing(now))
		require.NoError(t, b.Complete(3, 1, 1, now))
		assert.Equal(t, model.BatchCompletedWithErrors, b.Status)
		assert.Equal(t, b.TotalRecipients, b.SuccessfulCount+b.FailedCount+b.SkippedCount)
	})

	t.Run("Counts must add up", func(t *testing.T) {
		b := newBatch(t, 5)
		require.NoError(t, b.MarkProcessing(now))
		err := b.Complete(3, 1, 0, now)
		assert.ErrorIs(t, err, model.ErrInvalidBatchTransition)
		assert.Equal(t, model.BatchProcessing, b.Status)
		assert.Zero(t, b.SuccessfulCount)
	})

	t.Run("Complete requires processing", func(t *testing.T) {
		b := newBatch(t, 1)
		assert.ErrorIs(t, b.Complete(1, 0, 0, now), model.ErrInvalidBatchTransition)
	})

	t.Run("Processing only once", func(t *testing.T) {
		b := newBatch(t, 1)
		require.NoError(t, b.MarkProcessing(now))
		assert.ErrorIs(t, b.MarkProcessing(now), model.ErrInvalidBatchTransition)
	})

	t.Run("Fail from a live state", func(t *testing.T) {
		b := newBatch(t, 2)
		require.NoError(t, b.MarkProcessing(now))
		require.NoError(t, b.Fail("database went away", now))
		assert.Equal(t, model.BatchFailed, b.Status)
		assert.Equal(t, "database went away", b.Metadata[model.MetadataFailureReason])
	})

	t.Run("Terminal states are final", func(t *testing.T) {
		b := newBatch(t, 1)
		require.NoError(t, b.MarkProcessing(now))
		require.NoError(t, b.Complete(1, 0, 0, now))
		assert.ErrorIs(t, b.Fail("late", now), model.ErrInvalidBatchTransition)
		assert.ErrorIs(t, b.MarkProcessing(now), model.ErrInvalidBatchTransition)
		assert.Equal(t, model.BatchCompleted, b.Status)
	})
}

func TestNewNotificationBatch(t *testing.T) {
	now := time.Now().UTC()

	_, err := model.NewNotificationBatch(uuid.New(), uuid.New(), model.SMS, "", 0, "", now)
	assert.ErrorIs(t, err, model.ErrInvalidBatchSize)

	_, err = model.NewNotificationBatch(uuid.New(), uuid.New(), "FAX", "", 1, "", now)
	assert.ErrorIs(t, err, model.ErrUnsupportedChannel)

	b, err := model.NewNotificationBatch(uuid.New(), uuid.New(), model.Chat, "", 1, "", now)
	require.NoError(t, err)
	assert.NotContains(t, b.Metadata, model.MetadataMessagePreview)

	long := strings.Repeat("ש", 200)
	b, err = model.NewNotificationBatch(uuid.New(), uuid.New(), model.Chat, long, 1, "", now)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ש", 120), b.Metadata[model.MetadataMessagePreview])
	assert.Equal(t, long, b.Message)
}
