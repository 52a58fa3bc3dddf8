package metrics

import (
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

// EventCounter is an event dispatcher that turns domain events into counters.
type EventCounter struct{}

func (EventCounter) Dispatch(event service.Event) error {
	domainEventsTotal.WithLabelValues(event.Type()).Inc()

	switch e := event.(type) {
	case model.NotificationBatchCompleted:
		channel := e.Channel.String()
		batchRecipientsTotal.WithLabelValues(channel, "successful").Add(float64(e.Successful))
		batchRecipientsTotal.WithLabelValues(channel, "failed").Add(float64(e.Failed))
		batchRecipientsTotal.WithLabelValues(channel, "skipped").Add(float64(e.Skipped))
		batchesTotal.WithLabelValues(string(e.Status)).Inc()
	case model.NotificationBatchFailed:
		batchesTotal.WithLabelValues(string(model.BatchFailed)).Inc()
	}
	return nil
}
