package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	maxLoggedArgLen = 96
	waitDelay       = 5 * time.Second

	// MaxArgLen is the longest single argument the Linux kernel passes to a
	// new process (MAX_ARG_STRLEN minus the terminating NUL).
	MaxArgLen = 128*1024 - 1
)

// ErrArgTooLong is returned for an argument longer than MaxArgLen.
var ErrArgTooLong = errors.New("argument exceeds the process argument limit")

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	Env  []string
	Dir  string
}

// String returns the command line with long arguments shortened.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if len(a) > maxLoggedArgLen {
			a = fmt.Sprintf("%s...(%d bytes)", a[:maxLoggedArgLen], len(a))
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Output holds what a finished process wrote.
type Output struct {
	Stdout string
	Stderr string
}

// CommandError is returned when a process could not be started or exited
// with a non-zero status.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Output returns everything the process printed, for error classification.
func (e *CommandError) Output() string {
	return e.Stdout + "\n" + e.Stderr
}

// Executor runs external processes.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ProcessExecutor runs commands as child processes of this one.
type ProcessExecutor struct{}

// Run starts the command, waits for it and checks its exit status.
func (ProcessExecutor) Run(ctx context.Context, cmd Command) (*Output, error) {
	for i, arg := range cmd.Args {
		if len(arg) > MaxArgLen {
			return nil, fmt.Errorf("%w: argument %d of %s is %d bytes", ErrArgTooLong, i+1, cmd.Name, len(arg))
		}
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = waitDelay

	slog.Debug("Running command", "cmd", cmd.String(), "dir", cmd.Dir)
	err := c.Run()
	out := &Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	cmdErr := &CommandError{
		Command:  cmd.String(),
		ExitCode: -1,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.ExitCode = -1
		cmdErr.Err = ctxErr
	}
	return out, cmdErr
}
