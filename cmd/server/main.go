// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adworldmediaonline/email-cron/internal/config"
	"github.com/adworldmediaonline/email-cron/internal/controller"
	"github.com/adworldmediaonline/email-cron/internal/db"
	"github.com/adworldmediaonline/email-cron/internal/dispatch"
	"github.com/adworldmediaonline/email-cron/internal/events"
	"github.com/adworldmediaonline/email-cron/internal/handler"
	"github.com/adworldmediaonline/email-cron/internal/logging"
	"github.com/adworldmediaonline/email-cron/internal/provider"
	"github.com/adworldmediaonline/email-cron/internal/repository"
	"github.com/adworldmediaonline/email-cron/internal/service"
	"github.com/adworldmediaonline/email-cron/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppEnv)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()
	logger.Info().Msg("✅ connected to database")

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	eventRepo := &repository.DeliveryEventRepository{DB: conn}

	providerClient := provider.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := providerClient.VerifyConnectivity(ctx); err != nil {
			logger.Warn().Err(err).Msg("provider connectivity check failed, continuing anyway")
		}
		cancel()
	}

	dispatcher := dispatch.NewBatchDispatcher(providerClient, cfg.SendBatchSize, cfg.SendBatchDelay, logger)
	engine := dispatch.NewEngine(campaignRepo, recipientRepo, dispatcher, service.RenderForRecipient, logger)
	engine.Limit = cfg.CampaignBatchLimit
	engine.CampaignDelay = cfg.CampaignDelay

	scheduler := dispatch.NewScheduler(cfg.CronInterval, engine, logger)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	var publisher webhook.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("AMQP unavailable, delivery-event fanout disabled")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	verifier := webhook.NewVerifier(cfg.WebhookSecret)
	reconciler := webhook.NewReconciler(verifier, eventRepo, recipientRepo, publisher, logger)

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	dispatchHandler := &handler.DispatchHandler{
		Engine:    engine,
		Scheduler: scheduler,
		Secret:    cfg.CronSecret,
		Logger:    logger,
	}
	webhookHandler := &handler.WebhookHandler{Reconciler: reconciler, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := conn.Ping(); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Trigger surface
	r.Post("/api/cron/dispatch", dispatchHandler.RunCycle)
	r.Get("/api/cron/status", dispatchHandler.Status)

	// Delivery-event webhook
	r.Post("/api/webhooks/email", webhookHandler.HandleEvent)

	// Campaign routes
	r.Post("/api/campaigns", campaignController.CreateCampaign)
	r.Get("/api/campaigns", campaignController.ListCampaigns)
	r.Get("/api/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/api/campaigns/{id}/schedule", campaignController.ScheduleCampaign)
	r.Post("/api/campaigns/{id}/preview", campaignController.PersonalizedPreview)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("🚀 server running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
