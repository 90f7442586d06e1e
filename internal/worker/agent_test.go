package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskplane/internal/worker/runtime"
	"taskplane/pkg/api"
)

// MockController implements Controller for testing.
type MockController struct {
	mu sync.Mutex

	RegisterErr  error
	RegisterFail int32 // number of register calls that fail before success
	Paused       atomic.Bool

	// ClaimFunc allows customizing Claim behavior per test.
	ClaimFunc func(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error)

	registerCalls  int32
	HeartbeatCalls []api.HeartbeatRequest
	ClaimCalls     int32
	Reports        []api.ReportRequest
}

func (m *MockController) RegisterAgent(ctx context.Context, req api.RegisterAgentRequest) error {
	n := atomic.AddInt32(&m.registerCalls, 1)
	if n <= m.RegisterFail {
		return errors.New("controller unavailable")
	}
	return m.RegisterErr
}

func (m *MockController) Heartbeat(ctx context.Context, req api.HeartbeatRequest) (*api.HeartbeatResponse, error) {
	m.mu.Lock()
	m.HeartbeatCalls = append(m.HeartbeatCalls, req)
	m.mu.Unlock()
	return &api.HeartbeatResponse{OK: true, Paused: m.Paused.Load()}, nil
}

func (m *MockController) Claim(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error) {
	atomic.AddInt32(&m.ClaimCalls, 1)
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockController) Report(ctx context.Context, req api.ReportRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, req)
	return nil
}

func (m *MockController) reports() []api.ReportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.ReportRequest(nil), m.Reports...)
}

// MockRuntime implements runtime.Runtime for testing.
type MockRuntime struct {
	StartFunc func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error)
}

func (m *MockRuntime) Start(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, opts)
	}
	return &MockHandle{}, nil
}

// MockHandle implements runtime.Handle for testing.
type MockHandle struct {
	Output   string
	WaitFunc func(ctx context.Context) (runtime.ExitResult, error)
	StopFunc func(ctx context.Context) error
}

func (m *MockHandle) Wait(ctx context.Context) (runtime.ExitResult, error) {
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx)
	}
	return runtime.ExitResult{ExitCode: 0}, nil
}

func (m *MockHandle) Stop(ctx context.Context) error {
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

func (m *MockHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.Output)), nil
}

func oneTask(id string) func(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error) {
	var claimed atomic.Bool
	return func(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error) {
		if claimed.Swap(true) {
			return nil, nil
		}
		return &api.TaskResponse{
			ID: id, JobID: "job-1", FirstName: "Ada", LastName: "Lovelace",
			ProductLink: "https://shop/p", Qty: 3, Site: "site-1", Status: "running",
		}, nil
	}
}

// Test: New() Function
func TestNew_Defaults(t *testing.T) {
	agent := New(&MockController{}, &MockRuntime{}, AgentConfig{ID: "a1", Concurrency: -5}, nil)

	c := agent.config
	if c.Concurrency != 1 {
		t.Errorf("expected default concurrency=1, got %d", c.Concurrency)
	}
	if c.PollInterval != time.Second || c.MaxBackoff != 30*time.Second {
		t.Errorf("poll=%v backoff=%v", c.PollInterval, c.MaxBackoff)
	}
	if c.HeartbeatInterval != 10*time.Second || c.TaskTimeout != 5*time.Minute {
		t.Errorf("heartbeat=%v timeout=%v", c.HeartbeatInterval, c.TaskTimeout)
	}
	if c.Name != "a1" {
		t.Errorf("name defaults to id, got %q", c.Name)
	}
}

func TestNew_BackoffNotBelowPoll(t *testing.T) {
	agent := New(&MockController{}, &MockRuntime{}, AgentConfig{PollInterval: time.Minute, MaxBackoff: time.Second}, nil)
	if agent.config.MaxBackoff != time.Minute {
		t.Errorf("MaxBackoff = %v, want 1m", agent.config.MaxBackoff)
	}
}

// Test: Run() Loop Behavior
func TestRun_GracefulShutdown(t *testing.T) {
	agent := New(&MockController{}, &MockRuntime{}, AgentConfig{ID: "a1", PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Run() did not exit in time")
	}

	select {
	case <-agent.Done():
	default:
		t.Error("Done() channel was not closed after shutdown")
	}
}

func TestRun_RetriesRegistration(t *testing.T) {
	ctrl := &MockController{RegisterFail: 2}
	agent := New(ctrl, &MockRuntime{}, AgentConfig{ID: "a1", PollInterval: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	agent.Run(ctx)

	if n := atomic.LoadInt32(&ctrl.registerCalls); n != 3 {
		t.Errorf("register calls = %d, want 3", n)
	}
	if atomic.LoadInt32(&ctrl.ClaimCalls) == 0 {
		t.Error("agent never claimed after registering")
	}
}

func TestRun_RegisterGivesUpOnCancel(t *testing.T) {
	ctrl := &MockController{RegisterErr: errors.New("unauthorized")}
	agent := New(ctrl, &MockRuntime{}, AgentConfig{ID: "a1", PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := agent.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("Run() = %v, want register error", err)
	}
	if atomic.LoadInt32(&ctrl.ClaimCalls) != 0 {
		t.Error("agent claimed without registering")
	}
}

func TestRun_HeartbeatRecordsPause(t *testing.T) {
	ctrl := &MockController{}
	ctrl.Paused.Store(true)
	agent := New(ctrl, &MockRuntime{}, AgentConfig{
		ID:                "a1",
		PollInterval:      5 * time.Millisecond,
		HeartbeatInterval: 5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	go agent.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	if !agent.Paused() {
		t.Fatal("agent did not pick up the pause flag")
	}
	<-agent.Done()

	ctrl.mu.Lock()
	beats := len(ctrl.HeartbeatCalls)
	ctrl.mu.Unlock()
	if beats < 2 {
		t.Errorf("heartbeats = %d, want several", beats)
	}
}

func TestRun_PausedDoesNotClaim(t *testing.T) {
	ctrl := &MockController{ClaimFunc: oneTask("t1")}
	ctrl.Paused.Store(true)
	agent := New(ctrl, &MockRuntime{}, AgentConfig{
		ID:                "a1",
		PollInterval:      5 * time.Millisecond,
		HeartbeatInterval: time.Hour,
	}, nil)

	// Seed the flag as the first heartbeat would.
	agent.paused.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	agent.Run(ctx)

	if n := atomic.LoadInt32(&ctrl.ClaimCalls); n != 0 {
		t.Errorf("claims while paused = %d, want 0", n)
	}
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	var running, maxConcurrent int32

	ctrl := &MockController{
		ClaimFunc: func(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error) {
			return &api.TaskResponse{ID: "t", JobID: "j"}, nil
		},
	}
	rt := &MockRuntime{
		StartFunc: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
			current := atomic.AddInt32(&running, 1)
			for {
				prev := atomic.LoadInt32(&maxConcurrent)
				if current <= prev || atomic.CompareAndSwapInt32(&maxConcurrent, prev, current) {
					break
				}
			}
			return &MockHandle{
				WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
					time.Sleep(50 * time.Millisecond)
					atomic.AddInt32(&running, -1)
					return runtime.ExitResult{}, nil
				},
			}, nil
		},
	}

	const limit = 3
	agent := New(ctrl, rt, AgentConfig{ID: "a1", Concurrency: limit, PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go agent.Run(ctx)
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-agent.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown timeout")
	}

	if m := atomic.LoadInt32(&maxConcurrent); m > limit {
		t.Errorf("max concurrent tasks=%d exceeded limit=%d", m, limit)
	}
	if m := atomic.LoadInt32(&maxConcurrent); m < 2 {
		t.Errorf("max concurrent tasks=%d, expected parallel execution", m)
	}
}

func TestRun_GracefulDrainInFlight(t *testing.T) {
	var completed atomic.Bool
	ctrl := &MockController{ClaimFunc: oneTask("t1")}
	rt := &MockRuntime{
		StartFunc: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
			return &MockHandle{
				Output: "https://result/1\n",
				WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
					time.Sleep(150 * time.Millisecond)
					completed.Store(true)
					return runtime.ExitResult{}, nil
				},
			}, nil
		},
	}

	agent := New(ctrl, rt, AgentConfig{ID: "a1", PollInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go agent.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-agent.Done()

	if !completed.Load() {
		t.Fatal("in-flight task was not allowed to finish")
	}
	reports := ctrl.reports()
	if len(reports) != 1 || reports[0].Status != "success" {
		t.Errorf("reports = %+v", reports)
	}
}

// Test: task execution
func TestProcessTask_Success(t *testing.T) {
	ctrl := &MockController{}
	rt := &MockRuntime{
		StartFunc: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
			want := map[string]string{
				"TASK_ID": "t1", "JOB_ID": "job-1", "FIRST_NAME": "Ada", "LAST_NAME": "Lovelace",
				"PRODUCT_LINK": "https://shop/p", "QTY": "3", "SITE": "site-1", "AGENT_ID": "a1",
			}
			for k, v := range want {
				if opts.Env[k] != v {
					t.Errorf("env %s = %q, want %q", k, opts.Env[k], v)
				}
			}
			if len(opts.Command) != 2 || opts.Command[0] != "./order.sh" {
				t.Errorf("command = %v", opts.Command)
			}
			return &MockHandle{Output: "ordering...\nhttps://result/1\n\n"}, nil
		},
	}

	agent := New(ctrl, rt, AgentConfig{ID: "a1", Command: []string{"./order.sh", "--fast"}}, nil)
	task, _ := oneTask("t1")(context.Background(), api.ClaimRequest{})
	agent.processTask(context.Background(), *task)

	reports := ctrl.reports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	want := api.ReportRequest{TaskID: "t1", AgentID: "a1", Status: "success", ResultLink: "https://result/1"}
	if reports[0] != want {
		t.Errorf("report = %+v, want %+v", reports[0], want)
	}
}

func TestProcessTask_Failures(t *testing.T) {
	tests := []struct {
		name      string
		start     func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error)
		timeout   time.Duration
		wantError string
	}{
		{
			name: "Runtime Start Error",
			start: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
				return nil, errors.New("no such image")
			},
			wantError: "failed to start runtime: no such image",
		},
		{
			name: "Non Zero Exit",
			start: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
				return &MockHandle{
					Output: "https://partial\n",
					WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
						return runtime.ExitResult{ExitCode: 2, Error: errors.New("exit code 2: card declined")}, nil
					},
				}, nil
			},
			wantError: "exit code 2: card declined",
		},
		{
			name: "Non Zero Exit Without Message",
			start: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
				return &MockHandle{
					WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
						return runtime.ExitResult{ExitCode: 7}, nil
					},
				}, nil
			},
			wantError: "exit code 7",
		},
		{
			name: "Wait Error",
			start: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
				return &MockHandle{
					WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
						return runtime.ExitResult{ExitCode: -1}, errors.New("daemon gone")
					},
				}, nil
			},
			wantError: "runtime wait error: daemon gone",
		},
		{
			name:    "Timeout",
			timeout: 20 * time.Millisecond,
			start: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
				return &MockHandle{
					WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
						<-ctx.Done()
						return runtime.ExitResult{ExitCode: -1}, ctx.Err()
					},
				}, nil
			},
			wantError: "timed out after 20ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &MockController{}
			agent := New(ctrl, &MockRuntime{StartFunc: tt.start}, AgentConfig{ID: "a1", TaskTimeout: tt.timeout}, nil)

			task, _ := oneTask("t1")(context.Background(), api.ClaimRequest{})
			agent.processTask(context.Background(), *task)

			reports := ctrl.reports()
			if len(reports) != 1 {
				t.Fatalf("expected 1 report, got %d", len(reports))
			}
			r := reports[0]
			if r.Status != "failed" || r.Error != tt.wantError || r.ResultLink != "" {
				t.Errorf("report = %+v, want failed with %q", r, tt.wantError)
			}
		})
	}
}

func TestProcessTask_TimeoutStopsHandle(t *testing.T) {
	var stopped atomic.Bool
	rt := &MockRuntime{
		StartFunc: func(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
			return &MockHandle{
				WaitFunc: func(ctx context.Context) (runtime.ExitResult, error) {
					<-ctx.Done()
					return runtime.ExitResult{ExitCode: -1}, ctx.Err()
				},
				StopFunc: func(ctx context.Context) error {
					stopped.Store(true)
					return nil
				},
			}, nil
		},
	}

	agent := New(&MockController{}, rt, AgentConfig{ID: "a1", TaskTimeout: 10 * time.Millisecond}, nil)
	agent.processTask(context.Background(), api.TaskResponse{ID: "t1"})

	if !stopped.Load() {
		t.Error("timed out task was not stopped")
	}
}
