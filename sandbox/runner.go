package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// File permission constants for scratch artifacts
const (
	DirPermission  = 0o755
	FilePermission = 0o600
)

// CommandRunner defines an interface for spawning interpreter processes
type CommandRunner interface {
	RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using os/exec
type RealCommandRunner struct{}

// pipeGrace bounds how long Wait keeps draining the output pipes after the
// interpreter itself has exited or been killed. Without it, an orphaned
// grandchild holding the inherited pipe write ends would pin the call for
// its whole lifetime.
const pipeGrace = time.Second

// RunCommand executes the given command with its working directory set to
// dir and stdout/stderr captured in full. A non-zero exit status is not an
// error; err is reserved for spawn-level failures such as a missing binary.
//
// The command runs in its own process group, and a deadline kill targets the
// whole group, so children spawned by the snippet die with the interpreter.
func (RealCommandRunner) RunCommand(ctx context.Context, dir string, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Interpreter path comes from configuration
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = pipeGrace

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
			err = nil
		case errors.Is(err, exec.ErrWaitDelay):
			// The snippet exited but something it spawned kept the pipes
			// open past the grace period. The exit status and the output
			// captured so far are still valid.
			exitCode = cmd.ProcessState.ExitCode()
			err = nil
		default:
			return "", "", 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for the scratch-file operations the
// Runner performs
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	Remove(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Runner executes guarded snippets in disposable interpreter subprocesses.
// Each call to Run is independent; the only shared resource is the scratch
// directory, which is collision-free because file names derive from the
// per-execution identifier.
type Runner struct {
	logger      *zap.Logger
	guard       *Guard
	scratchDir  string
	interpreter string
	history     History
	cmdRunner   CommandRunner
	fs          FileSystem
}

// RunnerOption defines a functional option for Runner
type RunnerOption func(*Runner)

// WithInterpreter sets the interpreter binary used to run snippets
func WithInterpreter(interpreter string) RunnerOption {
	return func(r *Runner) {
		r.interpreter = interpreter
	}
}

// WithHistory sets the append-only execution history sink
func WithHistory(history History) RunnerOption {
	return func(r *Runner) {
		r.history = history
	}
}

// WithCommandRunner sets the CommandRunner for Runner
func WithCommandRunner(cmdRunner CommandRunner) RunnerOption {
	return func(r *Runner) {
		r.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for Runner
func WithFileSystem(fs FileSystem) RunnerOption {
	return func(r *Runner) {
		r.fs = fs
	}
}

// NewRunner creates a Runner that stages snippets under scratchDir. The
// directory is created lazily on first use.
func NewRunner(logger *zap.Logger, scratchDir string, opts ...RunnerOption) *Runner {
	runner := &Runner{
		logger:      logger,
		guard:       NewGuard(),
		scratchDir:  scratchDir,
		interpreter: "python3",
		cmdRunner:   &RealCommandRunner{},
		fs:          &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes one snippet and always returns a Result, whether the snippet
// was rejected by the Guard, completed, crashed, timed out, or could not be
// spawned. It blocks for at most req.Timeout plus spawn overhead.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	res := Result{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	start := time.Now()

	defer func() {
		r.record(ctx, req, res)
	}()

	if req.Kind != KindPython {
		res.ExitCode = ExitRejected
		res.Stderr = fmt.Sprintf("unsupported execution kind: %s", req.Kind)
		res.Duration = time.Since(start)
		return res
	}

	if !r.guard.Evaluate(req.Code) {
		r.logger.Info("snippet rejected by guard", zap.String("execution_id", res.ID))
		res.ExitCode = ExitRejected
		res.Stderr = RejectionMessage
		res.Duration = time.Since(start)
		return res
	}

	scratchFile, err := r.stageSnippet(res.ID, req.Code)
	if err != nil {
		res.ExitCode = ExitRejected
		res.Stderr = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	defer func() {
		// Cleanup must never mask the result already computed.
		if rmErr := r.fs.Remove(scratchFile); rmErr != nil {
			r.logger.Debug("failed to remove scratch file",
				zap.String("path", scratchFile),
				zap.Error(rmErr))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	stdout, stderr, exitCode, runErr := r.cmdRunner.RunCommand(runCtx, r.scratchDir, []string{r.interpreter, scratchFile})
	res.Duration = time.Since(start)

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		// The child was killed, not asked to stop; exit status is replaced
		// by the timeout sentinel.
		res.TimedOut = true
		res.ExitCode = ExitTimeout
		res.Stdout = stdout
		res.Stderr = fmt.Sprintf("execution timed out after %d seconds", int(req.Timeout.Seconds()))
	case runErr != nil:
		res.ExitCode = ExitRejected
		res.Stderr = runErr.Error()
	default:
		res.Stdout = stdout
		res.Stderr = stderr
		res.ExitCode = exitCode
	}

	r.logger.Info("snippet execution finished",
		zap.String("execution_id", res.ID),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("timed_out", res.TimedOut),
		zap.Duration("duration", res.Duration))

	return res
}

// stageSnippet materializes the snippet to a uniquely named file inside the
// scratch directory, creating the directory if needed.
func (r *Runner) stageSnippet(id, code string) (string, error) {
	if err := r.fs.MkdirAll(r.scratchDir, DirPermission); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	path := filepath.Join(r.scratchDir, "exec_"+id+".py")
	if err := r.fs.WriteFile(path, []byte(code), FilePermission); err != nil {
		return "", fmt.Errorf("failed to stage snippet: %w", err)
	}
	return path, nil
}

// record appends the finished result to the history sink. The write is
// detached from the request deadline and its failure is swallowed.
func (r *Runner) record(ctx context.Context, req Request, res Result) {
	if r.history == nil {
		return
	}
	if err := r.history.AppendExecution(context.WithoutCancel(ctx), req.Code, req.Kind, res); err != nil {
		r.logger.Warn("failed to record execution history",
			zap.String("execution_id", res.ID),
			zap.Error(err))
	}
}
