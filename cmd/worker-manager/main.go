// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mockexam-workers/internal/api"
	"mockexam-workers/internal/common/aws"
	"mockexam-workers/internal/common/camunda"
	"mockexam-workers/internal/common/config"
	"mockexam-workers/internal/common/database"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/observability"
	"mockexam-workers/pkg/registry"

	eb "mockexam-workers/internal/workers/admin/export-bookings"
	vbc "mockexam-workers/internal/workers/booking/verify-booking-counter"
	tlc "mockexam-workers/internal/workers/credits/transform-login-credits"
	so "mockexam-workers/internal/workers/crm/search-objects"
)

// worker is what every task handler exposes to the manager.
type worker interface {
	Register() error
	Close(ctx context.Context)
	IsEnabled() bool
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager...", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()
	if cfg.Observability.JaegerEndpoint != "" {
		if err := obs.EnableTracing(cfg.Observability.JaegerEndpoint); err != nil {
			log.Warn("Tracing disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		fatal(log, "zeebe client failed after retries", err)
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected successfully", nil)

	// --- Redis ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		fatal(log, "redis failed after retries", err)
	}
	defer redis.Close()
	log.Info("Redis connected successfully", nil)

	// --- PostgreSQL (optional audit store) ---
	var auditStore *vbc.PostgresAuditStore
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			fatal(log, "postgres failed after retries", err)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			fatal(log, "postgres schema setup failed", err)
		}
		auditStore = vbc.NewPostgresAuditStore(pg.DB)
		log.Info("PostgreSQL connected successfully", nil)
	} else {
		log.Info("PostgreSQL not configured, counter checks will not be audited", nil)
	}

	// --- External services ---
	crm := hubspot.NewCRMClient(cfg.Integrations.HubSpot)
	if err := crm.TestConnection(ctx); err != nil {
		log.Warn("HubSpot connection check failed", map[string]interface{}{"error": err.Error()})
	} else {
		log.Info("HubSpot connection verified", nil)
	}

	var alerter vbc.DriftAlerter
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			fatal(log, "sns client init failed", err)
		}
		alerter = snsClient
	}

	var mailer eb.Mailer
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			fatal(log, "ses client init failed", err)
		}
		mailer = sesClient
	}

	var audit vbc.AuditStore
	var history api.CheckHistory
	if auditStore != nil {
		audit = auditStore
		history = auditStore
	}

	log.Info("All external service clients initialized", nil)

	// --- Activity registry ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		log.Warn("Activity registry unavailable, using configured timeouts", map[string]interface{}{
			"path":  cfg.Registry.Path,
			"error": err.Error(),
		})
	} else {
		missing := reg.ApplyTimeouts(cfg, map[string]string{
			tlc.WorkerName: tlc.TaskType,
			vbc.WorkerName: vbc.TaskType,
			so.WorkerName:  so.TaskType,
			eb.WorkerName:  eb.TaskType,
		})
		for _, taskType := range missing {
			log.Warn("Worker task type missing from activity registry", map[string]interface{}{
				"taskType": taskType,
			})
		}
		log.Info("Activity registry loaded", map[string]interface{}{
			"path":      cfg.Registry.Path,
			"taskTypes": reg.TaskTypes(),
		})
	}

	// --- Workers ---
	credits, err := tlc.NewHandler(tlc.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Cache:         redis,
		Observability: obs,
	})
	if err != nil {
		fatal(log, "credits worker setup failed", err)
	}

	counter, err := vbc.NewHandler(vbc.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Counters:      redis,
		MockExams:     crm,
		Audit:         audit,
		Alerter:       alerter,
		Observability: obs,
	})
	if err != nil {
		fatal(log, "booking counter worker setup failed", err)
	}

	search, err := so.NewHandler(so.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Searcher:      crm,
		Observability: obs,
	})
	if err != nil {
		fatal(log, "crm search worker setup failed", err)
	}

	export, err := eb.NewHandler(eb.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Bookings:      crm,
		Mailer:        mailer,
		Observability: obs,
	})
	if err != nil {
		fatal(log, "booking export worker setup failed", err)
	}

	workers := []worker{credits, counter, search, export}

	registered := 0
	for _, w := range workers {
		if err := w.Register(); err != nil {
			fatal(log, "worker registration failed", err)
		}
		if w.IsEnabled() {
			registered++
		}
	}
	log.Info("Workers registered", map[string]interface{}{"count": registered})

	// --- Admin API ---
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Dependencies{
		Logger:      log.With(map[string]interface{}{"component": "api"}),
		AdminToken:  cfg.Server.AdminToken,
		Redis:       redis,
		Zeebe:       api.PingFunc(zeebe.HealthCheck),
		Eligibility: credits,
		Counter:     counter,
		History:     history,
		Export:      export,
		Search:      search,
	})
	server := api.NewServer(cfg.Server.Address, router, cfg.Server.AllowedOrigins, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Admin API server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Admin API shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	for _, w := range workers {
		w.Close(shutdownCtx)
	}

	log.Info("Worker manager stopped", nil)
}
