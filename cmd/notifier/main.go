package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/config"
	"github.com/orumagideon/morine-gypsum/internal/effects"
	"github.com/orumagideon/morine-gypsum/internal/invoice"
	kafkax "github.com/orumagideon/morine-gypsum/internal/kafka"
	"github.com/orumagideon/morine-gypsum/internal/notify"
	"github.com/orumagideon/morine-gypsum/internal/orders"
	"github.com/orumagideon/morine-gypsum/internal/postgres"
	"github.com/orumagideon/morine-gypsum/internal/redisx"
	"github.com/orumagideon/morine-gypsum/internal/settings"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the notifier worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	appSettings, err := (&settings.Store{DB: db, Log: logger}).Load(ctx)
	if err != nil {
		logger.Fatal("settings load", zap.Error(err))
	}

	runner := &effects.Runner{
		Renderer: &invoice.Renderer{Dir: cfg.InvoiceDir},
		Notifier: &notify.Mailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Log:      logger,
		},
		Store:  &orders.Repo{DB: db},
		Notify: appSettings.Notifications,
		Log:    logger,
	}
	worker := &effects.Worker{
		Runner:      runner,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         logger,
	}

	topics := []string{orders.TopicOrderCreated, orders.TopicPaymentVerified, orders.TopicOrderShipped}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Strings("topics", topics),
			zap.Int("workers", cfg.NotifierWorkers))
		if err := cons.Start(ctx, worker.HandleEvent); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down notifier")
	cancel()
}
