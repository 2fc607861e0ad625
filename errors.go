package forkcoupled

import "github.com/mwri/forkcoupled/internal/errors"

// Re-export error types from internal package

// ConfigError indicates invalid spawn configuration.
type ConfigError = errors.ConfigError

// PipeError indicates a standard-stream pipe could not be created.
type PipeError = errors.PipeError

// StartError indicates the child process could not be started.
type StartError = errors.StartError

// SignalError indicates a signal could not be delivered to the child.
type SignalError = errors.SignalError

// ProcessError indicates the child process exited with a failure.
type ProcessError = errors.ProcessError

// CoupledError is the base interface for all errors produced by this module.
type CoupledError = errors.CoupledError

// Re-export sentinel errors from internal package.
var (
	// ErrEmptyCommand indicates a spawn was requested with no command.
	ErrEmptyCommand = errors.ErrEmptyCommand

	// ErrStderrModeConflict indicates both quash and merge were requested
	// for the error stream.
	ErrStderrModeConflict = errors.ErrStderrModeConflict

	// ErrStdinClosed indicates the input stream has been closed.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrNotStarted indicates the child process was never started.
	ErrNotStarted = errors.ErrNotStarted
)
