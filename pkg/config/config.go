package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Prefix = "OUTREACH"

const (
	ProviderLog  = "log"
	ProviderHTTP = "http"
)

type Config struct {
	HTTPAddress string `envconfig:"HTTP_ADDRESS" default:":8080"`
	GRPCAddress string `envconfig:"GRPC_ADDRESS" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`
	// Empty RedisURL disables caching; empty AMQPURL disables event publishing.
	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"outreach.events"`

	Provider Provider `envconfig:"PROVIDER"`

	DispatchWorkers int           `envconfig:"DISPATCH_WORKERS" default:"8"`
	StatsCacheTTL   time.Duration `envconfig:"STATS_CACHE_TTL" default:"5m"`
}

type Provider struct {
	Mode        string        `envconfig:"MODE" default:"log"`
	URL         string        `envconfig:"URL"`
	Token       string        `envconfig:"TOKEN"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`
	CountryCode string        `envconfig:"COUNTRY_CODE" default:"972"`
	RatePerSec  float64       `envconfig:"RATE_PER_SECOND" default:"10"`
	Burst       int           `envconfig:"BURST" default:"5"`
}

// Load reads OUTREACH_* environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("OUTREACH_DATABASE_DSN must not be empty")
	}
	switch c.Provider.Mode {
	case ProviderLog:
	case ProviderHTTP:
		if c.Provider.URL == "" {
			return errors.New("OUTREACH_PROVIDER_URL is required in http provider mode")
		}
	default:
		return errors.Errorf("unknown provider mode %q", c.Provider.Mode)
	}
	if c.DispatchWorkers < 1 {
		return errors.Errorf("dispatch workers must be positive, got %d", c.DispatchWorkers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	return nil
}

func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
