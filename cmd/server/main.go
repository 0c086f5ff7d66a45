package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/logstream/aggregator/internal/aggregate"
	"github.com/logstream/aggregator/internal/api"
	"github.com/logstream/aggregator/internal/config"
	"github.com/logstream/aggregator/internal/health"
	"github.com/logstream/aggregator/internal/persistence"
	"github.com/logstream/aggregator/internal/queue"
	"github.com/logstream/aggregator/internal/validator"
	"github.com/logstream/aggregator/internal/worker"
	"github.com/logstream/aggregator/pkg/awsutil"
	"github.com/logstream/aggregator/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found")
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsutil.NewConfig(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create AWS config")
	}

	// The dedup tables live on the external DynamoDB volume; existing
	// rows are left untouched so dedup state survives restarts.
	tableManager := persistence.NewTableManager(awsCfg, cfg, log)
	if err := tableManager.EnsureTables(ctx); err != nil {
		log.WithError(err).Fatal("Failed to ensure DynamoDB tables")
	}

	store := persistence.NewDynamoDBStore(awsCfg, cfg)

	state := aggregate.New()
	if snapshot, err := store.LoadStats(ctx); err != nil {
		log.WithError(err).Warn("Failed to load persisted stats, starting from zero")
	} else if snapshot != nil {
		state.Restore(*snapshot)
		log.WithFields(logrus.Fields{
			"received":         snapshot.Received,
			"unique_processed": snapshot.UniqueProcessed,
		}).Info("Restored operational stats from store")
	}

	eventValidator, err := validator.New(cfg.SchemaPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load event schema")
	}

	eventQueue := queue.New(cfg.QueueCapacity)
	consumer := worker.New(eventQueue, store, state, log)
	healthChecker := health.New(store, eventQueue, log)

	if err := consumer.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start consumer worker")
	}

	server := api.NewServer(eventQueue, store, state, eventValidator, healthChecker, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServicePort),
		Handler: server.Router(),
	}

	go func() {
		log.WithField("port", cfg.ServicePort).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting new submissions first, then let the worker finish
	// its in-flight event before the store connection goes away.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Consumer worker did not stop cleanly")
	}

	snapshot := state.Snapshot()
	if err := store.SaveStats(shutdownCtx, &snapshot); err != nil {
		log.WithError(err).Error("Failed to persist operational stats")
	} else {
		log.Info("Operational stats persisted")
	}

	log.Info("Server exited")
}
