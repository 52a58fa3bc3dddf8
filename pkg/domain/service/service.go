package service

import (
	"go.opentelemetry.io/otel"
)

type Event interface{ Type() string }
type EventDispatcher interface{ Dispatch(event Event) error }

var tracer = otel.Tracer("github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service")

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(Event) error { return nil }

func dispatcherOrNop(d EventDispatcher) EventDispatcher {
	if d == nil {
		return nopDispatcher{}
	}
	return d
}
