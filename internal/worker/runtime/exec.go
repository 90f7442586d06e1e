package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ExecRuntime implements the Runtime interface using raw OS processes.
type ExecRuntime struct {
	WorkDir string
}

// NewExecRuntime creates a new process-based runtime. Each task runs in its
// own directory under workDir (default: $TMPDIR/taskplane/runner).
func NewExecRuntime(workDir string) *ExecRuntime {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "taskplane", "runner")
	}
	return &ExecRuntime{WorkDir: workDir}
}

// Start implements Runtime.Start using os/exec.
func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("command is required")
	}

	dir := opts.WorkDir
	if dir == "" {
		dir = e.WorkDir
		if id := opts.Env["TASK_ID"]; id != "" {
			dir = filepath.Join(dir, id)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	h := &ExecHandle{cmd: cmd, stdout: stdout, done: make(chan struct{})}
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command[0], err)
	}
	return h, nil
}

// ExecHandle is a running process.
type ExecHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr tailBuffer

	once   sync.Once
	done   chan struct{}
	result ExitResult
}

func (h *ExecHandle) wait() {
	h.once.Do(func() {
		go func() {
			err := h.cmd.Wait()
			h.result = exitResult(err, h.stderr.String())
			close(h.done)
		}()
	})
}

// Wait implements Handle.Wait. When ctx ends first the process is killed
// and ctx.Err() is returned with exit code -1.
func (h *ExecHandle) Wait(ctx context.Context) (ExitResult, error) {
	h.wait()
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		h.cmd.Process.Kill()
		<-h.done
		return ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
	}
}

// Stop sends SIGTERM and kills the process if it is still alive when ctx ends.
func (h *ExecHandle) Stop(ctx context.Context) error {
	h.wait()
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return h.cmd.Process.Kill()
	case <-time.After(5 * time.Second):
		return h.cmd.Process.Kill()
	}
}

// StreamLogs implements Handle.StreamLogs.
func (h *ExecHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return h.stdout, nil
}

func exitResult(err error, stderr string) ExitResult {
	if err == nil {
		return ExitResult{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if tail := lastLine(stderr); tail != "" {
			return ExitResult{ExitCode: code, Error: fmt.Errorf("exit code %d: %s", code, tail)}
		}
		return ExitResult{ExitCode: code, Error: fmt.Errorf("exit code %d", code)}
	}
	return ExitResult{ExitCode: -1, Error: err}
}

// tailBuffer keeps the last 4KB written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailSize = 4 << 10

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailSize {
		t.buf = t.buf[len(t.buf)-tailSize:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
