package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/config"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/amqp"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/events"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/metrics"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/mysql"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/provider"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/redis"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/transport"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/infrastructure/transport/grpc"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and gRPC APIs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, c.Bool("migrate"))
		},
	}
}

func migrateCommand() *cli.Command {
	run := func(apply func(*sqlx.DB) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := mysql.Open(c.Context, cfg.DatabaseDSN, log.StandardLogger())
			if err != nil {
				return err
			}
			defer db.Close()
			return apply(db)
		}
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply all pending migrations", Action: run(mysql.MigrateUp)},
			{Name: "down", Usage: "roll back every migration", Action: run(mysql.MigrateDown)},
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.SetLevel(cfg.Level())
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	logger := log.StandardLogger()

	db, err := mysql.Open(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if err := mysql.MigrateUp(db); err != nil {
			return err
		}
	}

	var cache model.Cache
	if cfg.RedisURL != "" {
		rc, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		cache = rc
	} else {
		logger.Warn("OUTREACH_REDIS_URL not set, running without cache")
	}

	dispatcher := events.FanOut{events.Log{Logger: logger}, metrics.EventCounter{}}
	if cfg.AMQPURL != "" {
		publisher, err := amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		dispatcher = append(dispatcher, publisher)
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	recipients := mysql.NewRecipientRepository(db)
	eventRepo := mysql.NewEventRepository(db)
	notificationRepo := mysql.NewNotificationRepository(db)
	batches := mysql.NewBatchRepository(db)
	invalidator := service.NewCacheInvalidator(cache, logger)

	notificationService := service.NewNotificationService(recipients, eventRepo, notificationRepo, gateway, invalidator, dispatcher)
	dispatchService := service.NewDispatchService(recipients, eventRepo, batches, notificationRepo, notificationService,
		invalidator, dispatcher, logger, service.DispatchOptions{Workers: cfg.DispatchWorkers})
	recipientService := service.NewRecipientService(recipients, cache, invalidator, dispatcher, logger, cfg.StatsCacheTTL)

	killSignalChan := getKillSignalChan()

	srv := startServer(cfg.HTTPAddress, transport.Router(notificationService, dispatchService, recipientService))
	grpcSrv, err := startGRPCServer(cfg.GRPCAddress, grpc.NewServer(notificationService, dispatchService, recipientService, logger))
	if err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}

	waitForKillSignalChan(killSignalChan)
	grpcSrv.Shutdown()
	return srv.Shutdown(context.Background())
}

func newGateway(cfg *config.Config, logger log.FieldLogger) (model.ProviderGateway, error) {
	var gateway model.ProviderGateway
	switch cfg.Provider.Mode {
	case config.ProviderHTTP:
		g, err := provider.NewHTTPGateway(provider.HTTPConfig{
			URL:         cfg.Provider.URL,
			Token:       cfg.Provider.Token,
			Timeout:     cfg.Provider.Timeout,
			CountryCode: cfg.Provider.CountryCode,
		}, logger)
		if err != nil {
			return nil, err
		}
		gateway = g
	case config.ProviderLog:
		gateway = provider.NewLogGateway(logger)
	default:
		return nil, errors.Errorf("unknown provider mode %q", cfg.Provider.Mode)
	}
	limited := provider.NewRateLimitedGateway(gateway, cfg.Provider.RatePerSec, cfg.Provider.Burst)
	return metrics.NewInstrumentedGateway(limited), nil
}

func startServer(serverUrl string, router http.Handler) *http.Server {
	log.WithFields(log.Fields{"url": serverUrl}).Info("Starting server")
	srv := &http.Server{Addr: serverUrl, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	return srv
}

func startGRPCServer(address string, srv *grpc.Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", address)
	}
	log.WithFields(log.Fields{"address": address}).Info("Starting gRPC server")
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server stopped")
		}
	}()
	return srv, nil
}

func getKillSignalChan() chan os.Signal {
	osKillSignalChan := make(chan os.Signal, 1)
	signal.Notify(osKillSignalChan, os.Interrupt, syscall.SIGTERM)
	return osKillSignalChan
}

func waitForKillSignalChan(killSignalChan <-chan os.Signal) {
	killSignal := <-killSignalChan
	switch killSignal {
	case os.Interrupt:
		log.Info("Got SIGINT...")
	case syscall.SIGTERM:
		log.Info("Got SIGTERM...")
	}
}
