package events

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

// FanOut hands every event to each dispatcher in order. All dispatchers run even when an
// earlier one fails; the first error is returned.
type FanOut []service.EventDispatcher

func (f FanOut) Dispatch(event service.Event) error {
	var first error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(event); err != nil && first == nil {
			first = errors.Wrapf(err, "dispatch %s", event.Type())
		}
	}
	return first
}

// Log writes every event to the logger.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Dispatch(event service.Event) error {
	l.Logger.WithFields(logrus.Fields{
		"event_type": event.Type(),
		"event":      event,
	}).Debug("domain event")
	return nil
}
