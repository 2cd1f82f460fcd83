// Where: internal/runner/runner.go
// What: Subprocess execution with captured stdout and stderr.
// Why: Toolchain, login and push steps inspect output rather than exit codes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hybridless/hybridless/internal/constants"
)

// Output is the captured result of a finished command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner defines the interface for executing external commands.
type CommandRunner interface {
	// RunCapture executes name with args in dir. A non-zero exit is
	// reported through Output.ExitCode, not the error.
	RunCapture(ctx context.Context, dir, name string, args ...string) (Output, error)
	// RunShell executes script through sh -c.
	RunShell(ctx context.Context, dir, script string) (Output, error)
}

// ExecRunner is a concrete implementation of CommandRunner using os/exec.
type ExecRunner struct {
	// Limit caps each captured stream. Zero uses the default limit.
	Limit int
	Env   []string
}

func (r ExecRunner) RunCapture(ctx context.Context, dir, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return r.run(cmd, dir)
}

func (r ExecRunner) RunShell(ctx context.Context, dir, script string) (Output, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	return r.run(cmd, dir)
}

func (r ExecRunner) run(cmd *exec.Cmd, dir string) (Output, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = constants.DefaultCommandOutputLimitBytes
	}
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("run %s: %w", cmd.Path, err)
	}
	return out, nil
}

// cappedBuffer keeps the first limit bytes and silently drops the rest.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
