package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result holds the outcome of a finished subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an external command synchronously and reports its exit
// code and captured output. It exists as an interface so the SSH-driven
// packages can be tested without ever spawning a process.
type Runner interface {
	Run(ctx context.Context, argv []string) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner creates a Runner that executes commands on the local host.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes argv and waits for completion. A non-zero exit is not an
// error at this level; it is reported through Result.ExitCode so callers
// can decide whether it is fatal. The returned error is reserved for
// failures to start the process at all (binary missing, context canceled).
func (r *ExecRunner) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	// A child killed by context expiry surfaces as an ExitError; report
	// the context failure instead of a fake exit code.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}
