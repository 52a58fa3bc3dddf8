package provider

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

// RateLimitedGateway keeps the request rate towards the provider under a fixed budget shared
// by every channel. Callers block until a token is available or their context ends.
type RateLimitedGateway struct {
	next    model.ProviderGateway
	limiter *rate.Limiter
}

func NewRateLimitedGateway(next model.ProviderGateway, perSecond float64, burst int) *RateLimitedGateway {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimitedGateway{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (g *RateLimitedGateway) SendSMS(ctx context.Context, address, body string) model.SendResult {
	if err := g.wait(ctx); err != nil {
		return model.SendResult{Error: err.Error()}
	}
	return g.next.SendSMS(ctx, address, body)
}

func (g *RateLimitedGateway) SendChatMessage(ctx context.Context, address, body string) model.SendResult {
	if err := g.wait(ctx); err != nil {
		return model.SendResult{Error: err.Error()}
	}
	return g.next.SendChatMessage(ctx, address, body)
}

func (g *RateLimitedGateway) MakeVoiceCall(ctx context.Context, address, script string) model.SendResult {
	if err := g.wait(ctx); err != nil {
		return model.SendResult{Error: err.Error()}
	}
	return g.next.MakeVoiceCall(ctx, address, script)
}

func (g *RateLimitedGateway) wait(ctx context.Context) error {
	return errors.Wrap(g.limiter.Wait(ctx), "provider rate limit")
}
