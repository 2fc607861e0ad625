package errors

import (
	"errors"
	"fmt"
)

// CoupledError is the base interface for all errors produced by this module.
type CoupledError interface {
	error
	IsCoupledError() bool
}

// Compile-time verification that all error types implement CoupledError.
var (
	_ CoupledError = (*ConfigError)(nil)
	_ CoupledError = (*PipeError)(nil)
	_ CoupledError = (*StartError)(nil)
	_ CoupledError = (*SignalError)(nil)
	_ CoupledError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrEmptyCommand indicates a spawn was requested with no command.
	ErrEmptyCommand = errors.New("empty command")

	// ErrStderrModeConflict indicates both quash and merge were requested
	// for the error stream.
	ErrStderrModeConflict = errors.New("quash and merge stderr are mutually exclusive")

	// ErrStdinClosed indicates the input stream has been closed.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrNotStarted indicates the child process was never started
	// (for example because a pre-exec hook failed).
	ErrNotStarted = errors.New("process not started")
)

// ConfigError indicates invalid spawn configuration, detected before any
// pipe or process is created.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid spawn configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsCoupledError implements CoupledError.
func (e *ConfigError) IsCoupledError() bool { return true }

// PipeError indicates a pipe for the child's standard streams could not be
// created.
type PipeError struct {
	Err error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("failed to create pipe: %v", e.Err)
}

func (e *PipeError) Unwrap() error {
	return e.Err
}

// IsCoupledError implements CoupledError.
func (e *PipeError) IsCoupledError() bool { return true }

// StartError indicates the child process could not be started.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// IsCoupledError implements CoupledError.
func (e *StartError) IsCoupledError() bool { return true }

// SignalError indicates a signal could not be delivered to the child.
type SignalError struct {
	Pid    int
	Signal string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("failed to send %s to pid %d: %v", e.Signal, e.Pid, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// IsCoupledError implements CoupledError.
func (e *SignalError) IsCoupledError() bool { return true }

// ProcessError indicates the child process exited with a failure.
// Stderr carries whatever error output was captured, when available.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsCoupledError implements CoupledError.
func (e *ProcessError) IsCoupledError() bool { return true }
