package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 512
	userAgent       = "arrival-confirmation/1"
	contentTypeJSON = "application/json"
)

type HTTPConfig struct {
	URL         string
	Token       string
	Timeout     time.Duration
	CountryCode string
}

// request is the JSON document POSTed to the provider endpoint.
type request struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Body    string `json:"body"`
}

type response struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// HTTPGateway talks to a messaging provider over a small JSON API.
type HTTPGateway struct {
	client      *http.Client
	url         string
	token       string
	countryCode string
	logger      logrus.FieldLogger
}

func NewHTTPGateway(cfg HTTPConfig, logger logrus.FieldLogger) (*HTTPGateway, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid provider url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("provider url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("provider url must include a host")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPGateway{
		client:      &http.Client{Timeout: timeout},
		url:         cfg.URL,
		token:       cfg.Token,
		countryCode: cfg.CountryCode,
		logger:      logger,
	}, nil
}

func (g *HTTPGateway) SendSMS(ctx context.Context, address, body string) model.SendResult {
	return g.post(ctx, model.SMS, address, body)
}

func (g *HTTPGateway) SendChatMessage(ctx context.Context, address, body string) model.SendResult {
	return g.post(ctx, model.Chat, address, body)
}

func (g *HTTPGateway) MakeVoiceCall(ctx context.Context, address, script string) model.SendResult {
	return g.post(ctx, model.Voice, address, script)
}

func (g *HTTPGateway) post(ctx context.Context, channel model.Channel, address, body string) model.SendResult {
	to := NormalizePhone(address, g.countryCode)
	log := g.logger.WithFields(logrus.Fields{"channel": channel, "to": to})

	id, err := g.do(ctx, request{Channel: channel.String(), To: to, Body: body})
	if err != nil {
		log.WithError(err).Warn("provider rejected message")
		return model.SendResult{Success: false, Error: err.Error()}
	}
	log.WithField("message_id", id).Info("message sent")
	return model.SendResult{Success: true, ProviderMessageID: id}
}

func (g *HTTPGateway) do(ctx context.Context, payload request) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encode provider request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "build provider request")
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "provider request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", errors.Wrap(err, "read provider response")
	}
	var decoded response
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := decoded.Error
		if reason == "" {
			reason = truncate(string(raw), maxErrorBody)
		}
		return "", errors.Errorf("provider returned %d: %s", resp.StatusCode, reason)
	}
	return decoded.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
