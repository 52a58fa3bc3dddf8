package metrics

import (
	"context"
	"time"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

// InstrumentedGateway counts and times every provider call of the wrapped gateway.
type InstrumentedGateway struct {
	next model.ProviderGateway
}

func NewInstrumentedGateway(next model.ProviderGateway) *InstrumentedGateway {
	return &InstrumentedGateway{next: next}
}

func (g *InstrumentedGateway) SendSMS(ctx context.Context, address, body string) model.SendResult {
	return observe(model.SMS, func() model.SendResult { return g.next.SendSMS(ctx, address, body) })
}

func (g *InstrumentedGateway) SendChatMessage(ctx context.Context, address, body string) model.SendResult {
	return observe(model.Chat, func() model.SendResult { return g.next.SendChatMessage(ctx, address, body) })
}

func (g *InstrumentedGateway) MakeVoiceCall(ctx context.Context, address, script string) model.SendResult {
	return observe(model.Voice, func() model.SendResult { return g.next.MakeVoiceCall(ctx, address, script) })
}

func observe(channel model.Channel, send func() model.SendResult) model.SendResult {
	start := time.Now()
	res := send()
	providerSendDuration.WithLabelValues(channel.String()).Observe(time.Since(start).Seconds())

	result := "success"
	if !res.Success {
		result = "failure"
	}
	providerSendTotal.WithLabelValues(channel.String(), result).Inc()
	return res
}
