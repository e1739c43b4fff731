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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinic-dispatcher/internal/common/config"
	"clinic-dispatcher/internal/common/database"
	"clinic-dispatcher/internal/common/events"
	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/observability"
	circuitbreaker "clinic-dispatcher/internal/dispatch/circuit-breaker"
	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
	"clinic-dispatcher/internal/dispatch/router"
	toolexecutor "clinic-dispatcher/internal/dispatch/tool-executor"
	"clinic-dispatcher/internal/server"
	"clinic-dispatcher/internal/services/catalog"
	"clinic-dispatcher/internal/services/memory"
	"clinic-dispatcher/internal/services/orchestrator"
	"clinic-dispatcher/internal/services/persistence"
	"clinic-dispatcher/internal/services/search"
	"clinic-dispatcher/internal/services/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatcher HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Address = addr
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overrides server.address")
}

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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func serve(cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatcher...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Postgres ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.ConnectPostgres(ctx, cfg.Database.Postgres)
		return err
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.ConnectRedis(ctx, cfg.Database.Redis)
		return err
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return err
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]server.Pinger{"postgres": pg, "redis": rdb}
	store := persistence.NewStore(pg.DB, log)

	// --- Elasticsearch (optional) ---
	var fallbackSearch toolexecutor.ServiceSearcher = store
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		fallbackSearch = search.New(es.Client, cfg.Catalog.ServicesIndex, log)
		checks["elasticsearch"] = es
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Events ---
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.SNS.Enabled {
		sns, err := events.NewSNSPublisher(ctx, cfg.Events.SNS.Region, cfg.Events.SNS.TopicARN)
		if err != nil {
			return fmt.Errorf("sns publisher: %w", err)
		}
		publisher = sns
	}

	// --- Catalog ---
	cat, err := catalog.New(&catalog.Config{
		CacheTTL:       time.Duration(cfg.Catalog.CacheTTLSec) * time.Second,
		RefreshTimeout: config.GetDuration(cfg.Catalog.RefreshTimeoutMs),
		FAQSeedPath:    cfg.Catalog.FAQSeedPath,
	}, rdb.Client, store, log)
	if err != nil {
		return err
	}
	if tenant := cfg.Dispatcher.DefaultTenantID; tenant != "" {
		if err := cat.Warm(ctx, tenant); err != nil {
			zapLog.Warn("catalog warm-up failed", zap.String("tenant", tenant), zap.Error(err))
		}
	}

	sessions := session.New(rdb.Client, 0, log)
	mem := memory.New(rdb.Client, 0, log)
	breaker := circuitbreaker.New(circuitbreaker.LoadConfig(cfg.CircuitBreaker), log)

	executor := toolexecutor.NewHandler(toolexecutor.HandlerOptions{
		Config:         toolexecutor.LoadConfig(cfg.Dispatcher),
		Breaker:        breaker,
		FAQ:            cat,
		PrimarySearch:  cat,
		FallbackSearch: fallbackSearch,
		Slots:          store,
		Bookings:       store,
		Memory:         mem,
		Events:         publisher,
		Logger:         log,
	})

	strategy, err := orchestrator.NewStrategy(cfg.Fallback, orchestrator.HandoffResponder(cfg.Dispatcher.DefaultLanguage))
	if err != nil {
		return err
	}

	dispatcher := router.New(router.Options{
		Config:     router.LoadConfig(cfg),
		Sessions:   sessions,
		Classifier: intentclassifier.New(intentclassifier.LoadConfig(cfg.Dispatcher)),
		Executor:   executor,
		Fallback:   strategy,
		Telemetry:  obs,
		Logger:     log,
	})

	srv, err := server.New(server.Options{
		Router:   dispatcher,
		Sessions: sessions,
		Memory:   mem,
		Circuits: breaker,
		Checks:   checks,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	serverErrors := make(chan error, 1)
	go func() {
		zapLog.Info("Dispatcher listening", zap.String("address", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigCh:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Graceful shutdown did not complete", zap.Error(err))
		_ = httpServer.Close()
	}

	zapLog.Info("Dispatcher stopped gracefully")
	return nil
}
