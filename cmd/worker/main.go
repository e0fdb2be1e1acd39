// cmd/worker/main.go
//
// Standalone dispatch loop. Runs the same claim engine as the server on a
// timer, with no HTTP surface. Safe to run alongside the server (or several
// workers): the store's conditional claims keep every campaign single-owner.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adworldmediaonline/email-cron/internal/config"
	"github.com/adworldmediaonline/email-cron/internal/db"
	"github.com/adworldmediaonline/email-cron/internal/dispatch"
	"github.com/adworldmediaonline/email-cron/internal/logging"
	"github.com/adworldmediaonline/email-cron/internal/provider"
	"github.com/adworldmediaonline/email-cron/internal/repository"
	"github.com/adworldmediaonline/email-cron/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppEnv).With().Str("component", "worker").Logger()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}

	providerClient := provider.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey)
	dispatcher := dispatch.NewBatchDispatcher(providerClient, cfg.SendBatchSize, cfg.SendBatchDelay, logger)
	engine := dispatch.NewEngine(campaignRepo, recipientRepo, dispatcher, service.RenderForRecipient, logger)
	engine.Limit = cfg.CampaignBatchLimit
	engine.CampaignDelay = cfg.CampaignDelay

	scheduler := dispatch.NewScheduler(cfg.CronInterval, engine, logger)
	scheduler.Start(context.Background())

	logger.Info().Msg("worker running, waiting for due campaigns...")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	scheduler.Stop()
	logger.Info().Msg("worker stopped")
}
