package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/catalog"
	"github.com/orumagideon/morine-gypsum/internal/config"
	"github.com/orumagideon/morine-gypsum/internal/effects"
	"github.com/orumagideon/morine-gypsum/internal/httpx"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	settingsStore := &settings.Store{DB: db, Log: logger}
	appSettings, err := settingsStore.Bootstrap(ctx, cfg.SettingsSeedFile)
	if err != nil {
		logger.Fatal("settings bootstrap", zap.Error(err))
	}

	repo := &orders.Repo{DB: db}
	renderer := &invoice.Renderer{Dir: cfg.InvoiceDir}
	mailer := &notify.Mailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Log:      logger,
	}
	runner := &effects.Runner{
		Renderer: renderer,
		Notifier: mailer,
		Store:    repo,
		Notify:   appSettings.Notifications,
		Log:      logger,
	}

	var (
		dispatcher orders.Dispatcher
		producers  []*kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
		verified := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentVerified, 1024, logger)
		shipped := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderShipped, 1024, logger)
		for _, p := range []*kafkax.Producer{created, verified, shipped} {
			p.Start(ctx)
			producers = append(producers, p)
		}
		dispatcher = &effects.Kafka{
			Created: created, Verified: verified, Shipped: shipped,
			Producer: cfg.ServiceName, Log: logger,
		}
		logger.Info("effects dispatched via kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		dispatcher = &effects.Inline{Runner: runner, Log: logger}
		logger.Info("effects dispatched inline")
	}

	svc := orders.NewService(repo, dispatcher, logger, cfg.RestockOnDelete)
	reconciler := orders.NewReconciler(repo, dispatcher, &redisx.PaymentCache{RDB: rdb}, logger)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Renderer: renderer, Log: logger}).Register(router)
	(&httpx.PaymentsHandler{Reconciler: reconciler, Log: logger}).Register(router)
	(&httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}, Log: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
