package provider

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

// LogGateway is the demo provider: nothing leaves the process, every attempt succeeds.
type LogGateway struct {
	logger logrus.FieldLogger
}

func NewLogGateway(logger logrus.FieldLogger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) SendSMS(ctx context.Context, address, body string) model.SendResult {
	return g.send(model.SMS, address, body)
}

func (g *LogGateway) SendChatMessage(ctx context.Context, address, body string) model.SendResult {
	return g.send(model.Chat, address, body)
}

func (g *LogGateway) MakeVoiceCall(ctx context.Context, address, script string) model.SendResult {
	return g.send(model.Voice, address, script)
}

func (g *LogGateway) send(channel model.Channel, address, body string) model.SendResult {
	id := "demo_" + strings.ToLower(channel.String()) + "_" + uuid.NewString()
	g.logger.WithFields(logrus.Fields{
		"channel":    channel,
		"to":         address,
		"message_id": id,
		"body":       body,
	}).Info("[DEMO] message not sent to a provider")
	return model.SendResult{Success: true, ProviderMessageID: id}
}
