package sandbox

import (
	"context"
	"time"
)

// Execution kind constants
const (
	KindPython = "python"
)

// Exit status values reserved by the Runner. ExitTimeout is never produced
// by a real process wait status on POSIX systems, which makes it a safe
// marker for deadline kills. ExitRejected doubles as a generic failure
// status for snippets that never reached a process.
const (
	ExitTimeout  = -1
	ExitRejected = 1
)

// RejectionMessage is the fixed denial text returned when the Guard rejects
// a snippet. It deliberately does not say which pattern matched.
const RejectionMessage = "forbidden operation detected"

// Request carries one snippet execution request. The caller boundary is
// responsible for validating Kind and keeping Timeout within the configured
// bounds before the request reaches the Runner.
type Request struct {
	Code    string
	Kind    string
	Timeout time.Duration
}

// Result is the immutable outcome of a single execution attempt. It is the
// sole artifact returned to the caller and the sole artifact persisted.
type Result struct {
	ID        string        `json:"id"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration_ns"`
	TimedOut  bool          `json:"timed_out"`
	CreatedAt time.Time     `json:"created_at"`
}

// Success reports whether the execution completed normally. It is false
// whenever TimedOut is set, regardless of the recorded exit status.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Executor is the interface the orchestration layers (HTTP, MCP) depend on.
type Executor interface {
	Run(ctx context.Context, req Request) Result
}

// History is an append-only sink for finished executions. Appending is
// best-effort from the Runner's perspective: a failed write is logged and
// discarded, never surfaced to the caller.
type History interface {
	AppendExecution(ctx context.Context, code, kind string, res Result) error
}
