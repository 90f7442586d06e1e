// Package worker contains the agent that claims tasks from the controller
// and runs them.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskplane/internal/store"
	"taskplane/internal/worker/runtime"
	"taskplane/pkg/api"
	"taskplane/pkg/client"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Controller is the part of the controller API the agent talks to.
type Controller interface {
	RegisterAgent(ctx context.Context, req api.RegisterAgentRequest) error
	Heartbeat(ctx context.Context, req api.HeartbeatRequest) (*api.HeartbeatResponse, error)
	Claim(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error)
	Report(ctx context.Context, req api.ReportRequest) error
}

var _ Controller = (*client.Client)(nil)

// AgentConfig holds configuration for the worker agent.
type AgentConfig struct {
	ID                string
	Name              string
	Sites             []string
	Concurrency       int
	PollInterval      time.Duration
	MaxBackoff        time.Duration // Maximum backoff when nothing is claimable (default: 30s)
	HeartbeatInterval time.Duration // Interval between heartbeat calls (default: 10s)
	TaskTimeout       time.Duration // Per task limit (default: 5m)

	Command []string // program run for every task
	Image   string   // docker runtime only
	WorkDir string
}

// Agent registers with the controller, keeps its heartbeat alive and runs
// claimed tasks through a runtime.
type Agent struct {
	controller Controller
	runtime    runtime.Runtime
	config     AgentConfig
	logger     *slog.Logger

	paused atomic.Bool
	busy   atomic.Int32
	done   chan struct{}
}

// New creates a new worker agent.
func New(c Controller, rt runtime.Runtime, config AgentConfig, logger *slog.Logger) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.MaxBackoff < config.PollInterval {
		config.MaxBackoff = config.PollInterval
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 10 * time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 5 * time.Minute
	}
	if config.Name == "" {
		config.Name = config.ID
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Agent{
		controller: c,
		runtime:    rt,
		config:     config,
		logger:     logger.With("agent_id", config.ID),
		done:       make(chan struct{}),
	}
}

// Paused reports the pause flag from the last heartbeat.
func (a *Agent) Paused() bool {
	return a.paused.Load()
}

// Run registers the agent and starts the heartbeat and claim loops. It blocks
// until the context is cancelled. On cancellation it stops claiming and lets
// in-flight tasks finish.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)

	if err := a.register(ctx); err != nil {
		return err
	}
	a.logger.Info("agent registered", "sites", a.config.Sites, "concurrency", a.config.Concurrency)

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		a.heartbeatLoop(ctx)
	}()

	err := a.claimLoop(ctx)
	<-hbDone
	return err
}

// register retries until the controller accepts the agent or ctx ends.
func (a *Agent) register(ctx context.Context) error {
	wait := a.config.PollInterval
	for {
		err := a.controller.RegisterAgent(ctx, api.RegisterAgentRequest{
			AgentID: a.config.ID,
			Name:    a.config.Name,
			Sites:   a.config.Sites,
		})
		if err == nil {
			return nil
		}
		a.logger.Warn("register failed, retrying", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return fmt.Errorf("register agent: %w", err)
		case <-time.After(wait):
		}
		wait = min(wait*2, a.config.MaxBackoff)
	}
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		a.heartbeat(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) heartbeat(ctx context.Context) {
	status := "idle"
	if a.busy.Load() > 0 {
		status = "busy"
	}

	resp, err := a.controller.Heartbeat(ctx, api.HeartbeatRequest{AgentID: a.config.ID, Status: status})
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("heartbeat failed", "error", err)
		}
		return
	}
	if was := a.paused.Swap(resp.Paused); was != resp.Paused {
		a.logger.Info("dispatch pause changed", "paused", resp.Paused)
	}
}

func (a *Agent) claimLoop(ctx context.Context) error {
	// Semaphore to limit concurrency
	sem := make(chan struct{}, a.config.Concurrency)
	var wg sync.WaitGroup

	// Channel to signal when a slot becomes available (adaptive polling)
	pollNow := make(chan struct{}, 1)

	// Current backoff duration (increases when idle, resets on work found)
	currentBackoff := a.config.PollInterval

	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}
	backoff := func() {
		currentBackoff *= 2
		if currentBackoff > a.config.MaxBackoff {
			currentBackoff = a.config.MaxBackoff
		}
	}

	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("context cancelled, waiting for running tasks to finish")
			wg.Wait()
			return ctx.Err()

		case <-time.After(currentBackoff):
			triggerPoll()

		case <-pollNow:
			if a.paused.Load() {
				currentBackoff = a.config.PollInterval
				continue
			}
			if len(sem) >= a.config.Concurrency {
				continue
			}

			task, err := a.controller.Claim(ctx, api.ClaimRequest{AgentID: a.config.ID, Sites: a.config.Sites})
			if err != nil {
				if ctx.Err() == nil {
					a.logger.Warn("claim failed", "error", err)
				}
				backoff()
				continue
			}
			if task == nil {
				backoff()
				continue
			}

			// Found work - reset backoff to minimum
			currentBackoff = a.config.PollInterval

			sem <- struct{}{}
			wg.Add(1)
			a.busy.Add(1)
			go func(task api.TaskResponse) {
				defer wg.Done()
				defer func() {
					a.busy.Add(-1)
					<-sem
					triggerPoll()
				}()
				a.processTask(ctx, task)
			}(*task)

			if len(sem) < a.config.Concurrency {
				triggerPoll()
			}
		}
	}
}

// taskEnv exposes the task fields to the task program.
func (a *Agent) taskEnv(task api.TaskResponse) map[string]string {
	return map[string]string{
		"TASK_ID":      task.ID,
		"JOB_ID":       task.JobID,
		"FIRST_NAME":   task.FirstName,
		"LAST_NAME":    task.LastName,
		"PRODUCT_LINK": task.ProductLink,
		"QTY":          strconv.Itoa(task.Qty),
		"SITE":         task.Site,
		"AGENT_ID":     a.config.ID,
	}
}

// processTask runs one claimed task and reports its outcome. Cancelling ctx
// does not interrupt the task; only TaskTimeout does.
func (a *Agent) processTask(ctx context.Context, task api.TaskResponse) {
	log := a.logger.With("task_id", task.ID, "job_id", task.JobID)

	tracer := otel.Tracer("taskplane-agent")
	spanCtx, span := tracer.Start(context.WithoutCancel(ctx), "process_task",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("job.id", task.JobID),
			attribute.String("task.site", task.Site),
			attribute.String("agent.id", a.config.ID),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log.Info("processing task")
	link, err := a.execute(spanCtx, task, log)

	report := api.ReportRequest{TaskID: task.ID, AgentID: a.config.ID}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.Status = string(store.TaskStatusFailed)
		report.Error = err.Error()
		log.Warn("task failed", "error", err)
	} else {
		report.Status = string(store.TaskStatusSuccess)
		report.ResultLink = link
		log.Info("task succeeded", "result_link", link)
	}

	reportCtx, cancel := context.WithTimeout(spanCtx, 10*time.Second)
	defer cancel()
	if err := a.controller.Report(reportCtx, report); err != nil {
		log.Error("report failed", "error", err)
	}
}

// execute runs the task program. The last non-empty stdout line is the
// result link.
func (a *Agent) execute(ctx context.Context, task api.TaskResponse, log *slog.Logger) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, a.config.TaskTimeout)
	defer cancel()

	handle, err := a.runtime.Start(execCtx, runtime.StartOptions{
		Image:   a.config.Image,
		Command: a.config.Command,
		Env:     a.taskEnv(task),
		WorkDir: a.config.WorkDir,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start runtime: %w", err)
	}

	lastLine := make(chan string, 1)
	go func() {
		lastLine <- readLastLine(execCtx, handle, log)
	}()

	var link string
	select {
	case link = <-lastLine:
	case <-execCtx.Done():
	}

	result, err := handle.Wait(execCtx)
	if execCtx.Err() == context.DeadlineExceeded {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer stopCancel()
		handle.Stop(stopCtx)
		return "", fmt.Errorf("timed out after %v", a.config.TaskTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("runtime wait error: %w", err)
	}
	if result.ExitCode != 0 {
		if result.Error != nil {
			return "", result.Error
		}
		return "", fmt.Errorf("exit code %d", result.ExitCode)
	}
	return link, nil
}

func readLastLine(ctx context.Context, handle runtime.Handle, log *slog.Logger) string {
	rc, err := handle.StreamLogs(ctx)
	if err != nil || rc == nil {
		if err != nil {
			log.Warn("failed to read task output", "error", err)
		}
		return ""
	}
	defer rc.Close()

	var last string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.Debug("task output", "line", line)
		last = line
	}
	return last
}
