// Package main is the entry point for the taskplane controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskplane/internal/auth"
	"taskplane/internal/catalog"
	"taskplane/internal/config"
	"taskplane/internal/controller"
	"taskplane/internal/dispatch"
	"taskplane/internal/events"
	"taskplane/internal/export"
	"taskplane/internal/kv"
	"taskplane/internal/kv/postgres"
	"taskplane/internal/kv/redis"
	"taskplane/internal/logger"
	"taskplane/internal/observability"

	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting (postgres backend)")
	configPath := flag.String("config", "", "Path to config file (default: taskplane.yaml in current directory)")
	flag.Parse()

	// A missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	// Store
	store, err := openStore(ctx, cfg, *migrateFlag, log)
	if err != nil {
		fatal(log, "failed to open store", err)
	}
	defer store.Close()

	identity := observability.Identity{Service: "taskplane-controller", Version: version, InstanceID: hostname()}

	// Tracing
	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
			Identity:    identity,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.OTELSampleRatio,
			Insecure:    cfg.OTELInsecure,
		})
		if err != nil {
			fatal(log, "failed to init tracing", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics(ctx, identity)
	if err != nil {
		fatal(log, "failed to init metrics", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Error("failed to shutdown metrics", "error", err)
		}
	}()

	// Catalog
	cat := catalog.Default()
	if len(cfg.CatalogProducts) > 0 {
		cat, err = catalog.FromStrings(cfg.CatalogProducts)
		if err != nil {
			fatal(log, "invalid catalog", err)
		}
	}

	// Result export
	var sink export.Sink = export.Nop{}
	if cfg.SheetID != "" {
		sheetsSink, err := export.NewSheetsSink(ctx, cfg.SheetID, catalog.SheetName, credentials(cfg.ServiceAccountJSON))
		if err != nil {
			fatal(log, "failed to create sheets sink", err)
		}
		sink = sheetsSink
		log.Info("exporting results to google sheets", "sheet_id", cfg.SheetID)
	}

	// Lifecycle events
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPub, err := events.Connect(cfg.NATSURL, "taskplane-controller", cfg.NATSSubjectPrefix)
		if err != nil {
			fatal(log, "failed to connect to nats", err)
		}
		defer natsPub.Close()
		publisher = natsPub
		log.Info("publishing events to nats", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}

	engine := dispatch.New(store, cat, dispatch.Config{
		LivenessWindow: cfg.LivenessWindow,
		Sink:           sink,
		Publisher:      publisher,
		Logger:         log,
	})

	// Observable gauges query the store only when scraped.
	err = observability.RegisterGauges("taskplane-controller", observability.Gauges{
		QueueDepth:   engine.PendingDepth,
		AgentsOnline: engine.CountOnline,
	}, log)
	if err != nil {
		log.Warn("failed to register gauges", "error", err)
	}

	verifier := auth.NewVerifier(cfg.APIKey)
	if !verifier.Enabled() {
		log.Warn("api_key is not set, the API is unauthenticated")
	}

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, engine, verifier, metricsHandler, log)

	go func() {
		log.Info("taskplane controller starting", "addr", addr, "backend", cfg.StoreBackend)
		if err := srv.Run(ctx); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down controller")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return
	}
	log.Info("server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool, log *slog.Logger) (kv.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return redis.New(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			log.Info("running database migrations", "table", postgres.MigrationsTable)
			schema, err := postgres.Migrate(store.DB(), log)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
			log.Info("migrations completed successfully", "schema_version", schema)
		}
		return store, nil
	default:
		log.Warn("using the in-memory store, state is lost on restart")
		return kv.NewMemory(), nil
	}
}

// credentials accepts inline service account JSON or a path to it.
func credentials(serviceAccount string) option.ClientOption {
	if strings.HasPrefix(strings.TrimSpace(serviceAccount), "{") {
		return option.WithCredentialsJSON([]byte(serviceAccount))
	}
	return option.WithCredentialsFile(serviceAccount)
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
