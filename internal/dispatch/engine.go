// Package dispatch hands pending tasks to polling agents and tracks their
// lifecycle: job creation, capability-matched claims, status reports, job
// statistics, agent liveness and the global pause switch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"taskplane/internal/catalog"
	"taskplane/internal/events"
	"taskplane/internal/export"
	"taskplane/internal/kv"
	"taskplane/internal/logger"
	"taskplane/internal/store"

	"github.com/google/uuid"
)

// DefaultLivenessWindow is how long an agent stays online after a heartbeat.
const DefaultLivenessWindow = 30 * time.Second

// Config holds the engine's collaborators and tunables. Zero values are
// replaced with defaults by New.
type Config struct {
	LivenessWindow time.Duration
	Sink           export.Sink      // receives successful results (default: export.Nop)
	Publisher      events.Publisher // lifecycle events (default: events.Nop)
	Logger         *slog.Logger
	Clock          func() time.Time
	NewID          func() string // job and task ids (default: dashless uuid)
}

// Engine implements the boundary operations of the control plane.
type Engine struct {
	repo    *store.Repository
	queue   *Queue
	catalog *catalog.Catalog
	config  Config
	metrics *instruments
}

// New creates an engine on s. All state lives in s.
func New(s kv.Store, cat *catalog.Catalog, config Config) *Engine {
	if config.LivenessWindow <= 0 {
		config.LivenessWindow = DefaultLivenessWindow
	}
	if config.Sink == nil {
		config.Sink = export.Nop{}
	}
	if config.Publisher == nil {
		config.Publisher = events.Nop{}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.NewID == nil {
		config.NewID = newID
	}
	if cat == nil {
		cat = catalog.Default()
	}

	return &Engine{
		repo:    store.NewRepository(s),
		queue:   NewQueue(s),
		catalog: cat,
		config:  config,
		metrics: newInstruments(),
	}
}

// Catalog returns the product table the engine validates jobs against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Ping checks the underlying store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.repo.KV().Ping(ctx)
}

// LivenessWindow returns the configured liveness window.
func (e *Engine) LivenessWindow() time.Duration {
	return e.config.LivenessWindow
}

func (e *Engine) now() time.Time {
	return e.config.Clock().UTC()
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, e.config.Logger)
}

// publish sends ev and only logs failures.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	ev.At = e.now()
	if err := e.config.Publisher.Publish(ctx, ev); err != nil {
		e.log(ctx).Warn("failed to publish event", "type", ev.Type, "error", err)
	}
}

// notFound translates store.ErrNotFound into ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
