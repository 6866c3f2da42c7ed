package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockHistory implements History for testing
type MockHistory struct {
	appendErr error
	codes     []string
	kinds     []string
	results   []Result
}

func (m *MockHistory) AppendExecution(_ context.Context, code, kind string, res Result) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.codes = append(m.codes, code)
	m.kinds = append(m.kinds, kind)
	m.results = append(m.results, res)
	return nil
}

// newTestRunner uses sh as the interpreter so tests do not depend on a
// Python installation. The Runner does not care what the interpreter is, so
// snippets in these tests are shell scripts that the Guard happens to allow.
func newTestRunner(t *testing.T, opts ...RunnerOption) (*Runner, string) {
	t.Helper()
	scratchDir := filepath.Join(t.TempDir(), "scratch")
	opts = append([]RunnerOption{WithInterpreter("sh")}, opts...)
	return NewRunner(zaptest.NewLogger(t), scratchDir, opts...), scratchDir
}

func TestRunnerRunSuccess(t *testing.T) {
	runner, _ := newTestRunner(t)

	res := runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	assert.True(t, res.Success())
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.False(t, res.TimedOut)
	assert.NotEmpty(t, res.ID)
	assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
	assert.False(t, res.CreatedAt.IsZero())
}

func TestRunnerRunNonZeroExit(t *testing.T) {
	runner, _ := newTestRunner(t)

	res := runner.Run(context.Background(), Request{
		Code:    "exit 3",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRunnerRunCapturesStderr(t *testing.T) {
	runner, _ := newTestRunner(t)

	res := runner.Run(context.Background(), Request{
		Code:    "echo oops 1>&2",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	assert.True(t, res.Success())
	assert.Contains(t, res.Stderr, "oops")
}

func TestRunnerRunTimeout(t *testing.T) {
	runner, _ := newTestRunner(t)

	start := time.Now()
	res := runner.Run(context.Background(), Request{
		Code:    "sleep 10",
		Kind:    KindPython,
		Timeout: 1 * time.Second,
	})
	elapsed := time.Since(start)

	assert.False(t, res.Success())
	assert.True(t, res.TimedOut)
	assert.Equal(t, ExitTimeout, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out after 1 seconds")
	assert.GreaterOrEqual(t, res.Duration, 1*time.Second)
	// The Runner must not hang past the bound.
	assert.Less(t, elapsed, 4*time.Second)
}

func TestRunnerRunTimeoutKillsBackgroundChildren(t *testing.T) {
	runner, _ := newTestRunner(t)

	// The backgrounded child inherits the pipe write ends; the deadline kill
	// must take it down with the interpreter instead of letting it pin the
	// call for its full lifetime.
	start := time.Now()
	res := runner.Run(context.Background(), Request{
		Code:    "sleep 30 &\nsleep 30",
		Kind:    KindPython,
		Timeout: 1 * time.Second,
	})
	elapsed := time.Since(start)

	assert.False(t, res.Success())
	assert.True(t, res.TimedOut)
	assert.Equal(t, ExitTimeout, res.ExitCode)
	assert.Less(t, elapsed, 4*time.Second)
}

func TestRunnerRunReturnsWhenChildOutlivesSnippet(t *testing.T) {
	runner, _ := newTestRunner(t)

	// The snippet itself finishes immediately; only its orphan keeps the
	// pipes open. The call must return once the grace period elapses, with
	// the snippet's real exit status and output intact.
	start := time.Now()
	res := runner.Run(context.Background(), Request{
		Code:    "sleep 5 &\necho done",
		Kind:    KindPython,
		Timeout: 10 * time.Second,
	})
	elapsed := time.Since(start)

	assert.True(t, res.Success())
	assert.Equal(t, "done\n", res.Stdout)
	assert.False(t, res.TimedOut)
	assert.Less(t, elapsed, 4*time.Second)
}

func TestRunnerRunGuardRejection(t *testing.T) {
	runner, scratchDir := newTestRunner(t)

	res := runner.Run(context.Background(), Request{
		Code:    "import os",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	assert.False(t, res.Success())
	assert.Equal(t, ExitRejected, res.ExitCode)
	assert.Equal(t, RejectionMessage, res.Stderr)
	assert.False(t, res.TimedOut)
	assert.GreaterOrEqual(t, res.Duration, time.Duration(0))

	// No process side effects: the scratch directory was never created.
	_, err := os.Stat(scratchDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunnerRunSpawnFailure(t *testing.T) {
	runner, _ := newTestRunner(t, WithInterpreter("definitely-not-a-real-binary-4711"))

	res := runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	assert.False(t, res.Success())
	assert.NotZero(t, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
	assert.False(t, res.TimedOut)
}

func TestRunnerRunUnsupportedKind(t *testing.T) {
	runner, scratchDir := newTestRunner(t)

	res := runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    "ruby",
		Timeout: 5 * time.Second,
	})

	assert.False(t, res.Success())
	assert.Contains(t, res.Stderr, "unsupported execution kind")

	_, err := os.Stat(scratchDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunnerRunCleansScratchFile(t *testing.T) {
	runner, scratchDir := newTestRunner(t)

	runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	entries, err := os.ReadDir(scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed after execution")
}

func TestRunnerRunRecordsHistory(t *testing.T) {
	history := &MockHistory{}
	runner, _ := newTestRunner(t, WithHistory(history))

	res := runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	require.Len(t, history.results, 1)
	assert.Equal(t, "echo hello", history.codes[0])
	assert.Equal(t, KindPython, history.kinds[0])
	assert.Equal(t, res.ID, history.results[0].ID)
}

func TestRunnerRunRecordsGuardRejection(t *testing.T) {
	history := &MockHistory{}
	runner, _ := newTestRunner(t, WithHistory(history))

	runner.Run(context.Background(), Request{
		Code:    "import os",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	require.Len(t, history.results, 1)
	assert.Equal(t, ExitRejected, history.results[0].ExitCode)
}

func TestRunnerRunHistoryFailureIsSwallowed(t *testing.T) {
	history := &MockHistory{appendErr: errors.New("disk full")}
	runner, _ := newTestRunner(t, WithHistory(history))

	res := runner.Run(context.Background(), Request{
		Code:    "echo hello",
		Kind:    KindPython,
		Timeout: 5 * time.Second,
	})

	// The persistence failure must not overturn the computed result.
	assert.True(t, res.Success())
}

func TestRunnerRunGeneratesUniqueIDs(t *testing.T) {
	runner, _ := newTestRunner(t)

	req := Request{Code: "echo hi", Kind: KindPython, Timeout: 5 * time.Second}
	first := runner.Run(context.Background(), req)
	second := runner.Run(context.Background(), req)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestResultSuccess(t *testing.T) {
	t.Run("ZeroExitNotTimedOut", func(t *testing.T) {
		assert.True(t, Result{ExitCode: 0}.Success())
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		assert.False(t, Result{ExitCode: 1}.Success())
	})

	t.Run("TimedOutOverridesExitStatus", func(t *testing.T) {
		// Success is never true when the timeout flag is set, regardless of
		// any exit status race.
		assert.False(t, Result{ExitCode: 0, TimedOut: true}.Success())
	})
}
