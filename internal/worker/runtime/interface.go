// Package runtime provides the Runtime interface for task execution backends.
package runtime

import (
	"context"
	"io"
)

// Runtime defines the interface for executing tasks.
// Implementations include Docker and raw process execution.
type Runtime interface {
	// Start begins execution of a task and returns a handle.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions contains the parameters for starting a task.
type StartOptions struct {
	Image   string // docker only
	Command []string
	Env     map[string]string
	WorkDir string
}

// ExitResult is the outcome of a finished task.
type ExitResult struct {
	ExitCode int
	Error    error // set when the task failed, carries the stderr tail if any
}

// Handle represents a running task.
type Handle interface {
	// Wait blocks until the task completes and returns its exit status.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop forcefully terminates the task.
	Stop(ctx context.Context) error

	// StreamLogs returns a reader for the task's stdout. It must be
	// drained before Wait returns the final result.
	StreamLogs(ctx context.Context) (io.ReadCloser, error)
}
