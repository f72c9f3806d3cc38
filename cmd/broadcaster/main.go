// cmd/broadcaster/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"broadcast-engine/internal/broadcast/dispatcher"
	"broadcast-engine/internal/broadcast/engagement"
	"broadcast-engine/internal/broadcast/lifecycle"
	"broadcast-engine/internal/broadcast/resolver"
	"broadcast-engine/internal/broadcast/scheduler"
	"broadcast-engine/internal/broadcast/templates"
	"broadcast-engine/internal/common/config"
	"broadcast-engine/internal/common/database"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/common/observability"
	"broadcast-engine/internal/repository"
	"broadcast-engine/internal/store"
	"broadcast-engine/internal/transport"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting broadcaster...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("broadcaster")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Delivery Transport ---
	var delivery dispatcher.Transport
	switch cfg.Transport.Channel {
	case "sms":
		delivery, err = transport.NewSMSTransport(ctx, pg.DB, cfg.Transport.AWS.Region, cfg.Transport.SMS.SenderID)
	default:
		delivery, err = transport.NewEmailTransport(ctx, pg.DB, cfg.Transport.AWS.Region, cfg.Transport.Email.FromEmail)
	}
	if err != nil {
		zapLog.Fatal("delivery transport initialization failed", zap.Error(err))
	}
	zapLog.Info("Delivery transport initialized", zap.String("channel", cfg.Transport.Channel))

	// --- Wire Services ---
	docs := store.NewPostgresStore(pg.DB)
	messages := repository.NewMessageRepository(docs, cfg.Dispatcher.CASRetries)
	histories := repository.NewHistoryRepository(docs)
	directory := resolver.NewDirectoryResolver(pg.DB)
	queue := scheduler.NewDueQueue(redis.Client)

	dispatch := dispatcher.New(messages, histories, directory, delivery, log, obs, dispatcher.Options{
		Parallelism:    cfg.Dispatcher.Parallelism,
		AttemptTimeout: config.GetDuration(cfg.Dispatcher.AttemptTimeout),
	})

	templateService := templates.NewService(docs, log, cfg.Dispatcher.CASRetries)
	lifecycleService := lifecycle.NewService(messages, queue, dispatch, time.Now, log)
	tracker := engagement.NewTracker(messages, histories, log)

	sched := scheduler.New(queue, dispatch, log, scheduler.Options{
		PollInterval: config.GetDuration(cfg.Scheduler.PollInterval),
		ClaimTTL:     config.GetDuration(cfg.Scheduler.ClaimTTL),
		BatchLimit:   cfg.Scheduler.BatchLimit,
	})
	go sched.Run(ctx)
	zapLog.Info("Scheduler started")

	// --- API, Health & Metrics Server ---
	go func() {
		r := chi.NewRouter()
		newAPI(templateService, lifecycleService, tracker, log).register(r)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		r.Handle("/metrics", promhttp.Handler())
		r.Handle("/debug/pprof/*", http.DefaultServeMux)

		zapLog.Info("API/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, r); err != nil {
			zapLog.Error("API/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = shutdownCtx

	zapLog.Info("Broadcaster stopped gracefully")
}
