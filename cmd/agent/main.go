// Package main is the entry point for the taskplane agent.
// The agent registers its sites with the controller, claims matching tasks
// and runs each one through the configured runtime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"taskplane/internal/config"
	"taskplane/internal/logger"
	"taskplane/internal/observability"
	"taskplane/internal/worker"
	"taskplane/internal/worker/runtime"
	"taskplane/pkg/client"

	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (default: taskplane.yaml in current directory)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if len(cfg.AgentSites) == 0 {
		log.Warn("agent_sites is empty, this agent will never be offered a task")
	}
	if cfg.Runtime == config.RuntimeExec && len(cfg.RuntimeCommand) == 0 {
		fatal(log, "runtime_command is required for the exec runtime", errors.New("missing RUNTIME_COMMAND"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identity := observability.Identity{Service: "taskplane-agent", Version: version, InstanceID: cfg.AgentID}

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

	// Select runtime based on configuration
	var rt runtime.Runtime
	switch cfg.Runtime {
	case config.RuntimeDocker:
		dockerRT, err := runtime.NewDockerRuntime()
		if err != nil {
			fatal(log, "failed to create docker runtime", err)
		}
		rt = dockerRT
		log.Info("using docker runtime", "image", cfg.RuntimeImage)
	default:
		rt = runtime.NewExecRuntime(cfg.RuntimeWorkDir)
		log.Info("using exec runtime", "command", cfg.RuntimeCommand, "workdir", cfg.RuntimeWorkDir)
	}

	agent := worker.New(client.New(cfg.ControllerURL, cfg.APIKey), rt, worker.AgentConfig{
		ID:                cfg.AgentID,
		Name:              cfg.AgentName,
		Sites:             cfg.AgentSites,
		Concurrency:       cfg.AgentConcurrency,
		PollInterval:      cfg.AgentPollInterval,
		MaxBackoff:        cfg.AgentMaxBackoff,
		HeartbeatInterval: cfg.AgentHeartbeatInterval,
		TaskTimeout:       cfg.TaskTimeout,
		Command:           cfg.RuntimeCommand,
		Image:             cfg.RuntimeImage,
	}, log)

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

	if cfg.AgentMetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.AgentMetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsHandler)
			log.Info("agent metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	go func() {
		if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("agent stopped", "error", err)
			cancel()
		}
	}()
	log.Info("agent started", "controller", cfg.ControllerURL, "concurrency", cfg.AgentConcurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down agent")
	cancel()

	<-agent.Done()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
