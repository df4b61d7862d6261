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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fraudreview/internal/config"
	"fraudreview/internal/database"
	"fraudreview/internal/delivery"
	"fraudreview/internal/handlers"
	"fraudreview/internal/ingestion"
	"fraudreview/internal/logger"
	"fraudreview/internal/metrics"
	"fraudreview/internal/models"
	"fraudreview/internal/server"
	"fraudreview/internal/services"
	"fraudreview/internal/validator"

	_ "fraudreview/internal/docs" // Import swagger docs
)

// @title           Fraud Review API
// @version         1.0
// @description     Review workflow for transactions flagged by the statement classifier: approve, dispute or escalate, notify customers and track statement ingestion.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Pipeline API key.

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(appConfig.Env, appConfig.LogLevel)
	defer logger.Sync()
	log := logger.Get()

	validator.Register()

	// Database
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	if err := dbManager.RunMigrations(database.MigrationsSource); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus("fraudreview")
	if err := recorder.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Notification delivery
	var sink delivery.Sink = delivery.LogSink{}
	if appConfig.DeliveryWebhookURL != "" {
		sink = delivery.NewWebhookSink(appConfig.DeliveryWebhookURL, appConfig.DeliveryAPIKey,
			&http.Client{Timeout: appConfig.DeliveryTimeout})
	}
	dispatcher := delivery.NewDispatcher(sink, delivery.Config{
		Workers:   appConfig.DeliveryWorkers,
		QueueSize: appConfig.DeliveryQueueSize,
		Timeout:   appConfig.DeliveryTimeout,
	}, recorder)

	// Services
	db := dbManager.DB()
	channel := models.NotificationType(appConfig.DefaultNotificationType)
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db, dispatcher, recorder, channel)
	workflowService := services.NewWorkflowService(db, dispatcher, recorder, channel)
	queryService := services.NewQueryService(db)
	statsService := services.NewStatsService(db)
	statementService := services.NewStatementService(db, ingestion.NewTracker(), notificationService, recorder,
		services.StatementConfig{
			UploadDir:         appConfig.UploadDir,
			MaxUploadBytes:    appConfig.MaxUploadBytes,
			AutoNotifyFlagged: appConfig.AutoNotifyFlagged,
		})

	dispatcher.OnDelivered(notificationService.MarkDelivered)
	dispatcher.Start()

	router := server.NewRouter(server.Handlers{
		Auth:          handlers.NewAuthHandler(userService, auditService),
		Transactions:  handlers.NewTransactionHandler(queryService, workflowService, statsService, auditService),
		Notifications: handlers.NewNotificationHandler(notificationService, queryService, auditService),
		Stats:         handlers.NewStatsHandler(statsService),
		Statements:    handlers.NewStatementHandler(statementService, auditService, appConfig.MaxUploadBytes),
		Pipeline:      handlers.NewPipelineHandler(statementService),
	}, server.Options{
		PipelineAPIKey: appConfig.PipelineAPIKey,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Swagger:        appConfig.Env != "production",
		RequestLogging: true,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting fraud review server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http server shutdown", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warnw("delivery dispatcher did not drain", "error", err, "stats", dispatcher.Stats())
	}

	log.Info("Server stopped")
	return nil
}
