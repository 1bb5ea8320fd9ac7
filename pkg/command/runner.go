// Package command abstracts subprocess execution behind a Runner interface.
// Production code uses the os/exec backed ExecRunner; tests use Fake.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/stackmill/upshift/pkg/log"
)

// Cmd describes one subprocess invocation.
type Cmd struct {
	Name string
	Args []string
	// Dir is the working directory, empty for the caller's.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the parent environment.
	Env []string
	// Stdout, when set, receives the raw standard output stream instead of
	// it being captured (used to redirect a database dump to a file).
	Stdout io.Writer
}

// Runner executes external commands. Every Upshift collaborator (artisan,
// composer, mysqldump, chown) is invoked through this interface so tests can
// substitute a fake.
type Runner interface {
	// Run executes the command and waits for it, returning an error that
	// includes the captured stderr on a non-zero exit.
	Run(ctx context.Context, c Cmd) error
	// Output executes the command and returns its trimmed standard output.
	Output(ctx context.Context, c Cmd) (string, error)
}

// ExecRunner is the os/exec backed Runner used in production.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) build(ctx context.Context, c Cmd) (*exec.Cmd, *bytes.Buffer) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return cmd, stderr
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	cmd, stderr := r.build(ctx, c)
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}

	logger := log.WithComponent("command")
	logger.Debug().
		Str("cmd", c.Name).
		Strs("args", c.Args).
		Msg("running command")

	if err := cmd.Run(); err != nil {
		return commandError(c, err, stderr)
	}
	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, c Cmd) (string, error) {
	cmd, stderr := r.build(ctx, c)

	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout

	logger := log.WithComponent("command")
	logger.Debug().
		Str("cmd", c.Name).
		Strs("args", c.Args).
		Msg("running command")

	if err := cmd.Run(); err != nil {
		return "", commandError(c, err, stderr)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func commandError(c Cmd, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return fmt.Errorf("%s: %w: %s", c.Name, err, msg)
}
