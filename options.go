package forkcoupled

import (
	"log/slog"
	"time"

	"github.com/mwri/forkcoupled/internal/spawn"
)

// PreExecFunc is a hook run against the child-side stdio trio after the
// standard streams are fixed and before the command is executed.
type PreExecFunc = spawn.PreExecFunc

// ChildStdio is the child-side stdio trio handed to pre-exec hooks.
type ChildStdio = spawn.ChildStdio

// Options holds spawn configuration. Populate it through Option functions.
type Options struct {
	// Logger receives debug/info/warn messages. Nil means silent.
	Logger *slog.Logger

	// Ref is an opaque correlation value, stored and returned by the
	// Process.Ref accessor, otherwise unused.
	Ref any

	// Controller is an opaque controller reference, stored and returned by
	// the Process.Controller accessor, otherwise unused.
	Controller any

	// Timeout is the default inactivity timeout applied to every monitored
	// stream. Zero means none.
	Timeout time.Duration

	// StdoutTimeout and StderrTimeout override Timeout per stream.
	StdoutTimeout time.Duration
	StderrTimeout time.Duration

	// QuashStderr drains the error stream without emitting events.
	QuashStderr bool

	// MergeStderr emits error-stream events under the output stream's
	// name. Mutually exclusive with QuashStderr.
	MergeStderr bool

	// PreExec hooks run in order before the command is executed.
	PreExec []PreExecFunc

	// Cwd is the child working directory. Empty means inherit.
	Cwd string

	// Env is extra child environment, merged over the parent's.
	Env map[string]string

	// StdinData, when non-empty, is written to the child after spawn and
	// the input stream is closed once it has flushed.
	StdinData []byte
}

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// logger returns the configured logger, or a silent one.
func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return NopLogger()
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRef stores an opaque correlation value on the handle.
func WithRef(ref any) Option {
	return func(o *Options) {
		o.Ref = ref
	}
}

// WithController stores an opaque controller reference on the handle.
func WithController(ctrlr any) Option {
	return func(o *Options) {
		o.Controller = ctrlr
	}
}

// WithTimeout sets the default inactivity timeout for every monitored
// stream. A stream that sees no activity for this long finishes with
// ConditionTimedOut.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithStdoutTimeout overrides the default timeout for the output stream.
func WithStdoutTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.StdoutTimeout = d
	}
}

// WithStderrTimeout overrides the default timeout for the error stream.
func WithStderrTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.StderrTimeout = d
	}
}

// WithQuashStderr drains the child's error stream without emitting events.
// The stream is still read continuously so the child never blocks on a full
// stderr pipe.
func WithQuashStderr(quash bool) Option {
	return func(o *Options) {
		o.QuashStderr = quash
	}
}

// WithMergeStderr emits error-stream events under the output stream's
// name. The two streams remain separate pipes; only the event names merge.
func WithMergeStderr(merge bool) Option {
	return func(o *Options) {
		o.MergeStderr = merge
	}
}

// WithPreExec appends hooks to run in the child bootstrap, after the
// standard streams are redirected and before the command is executed.
func WithPreExec(hooks ...PreExecFunc) Option {
	return func(o *Options) {
		o.PreExec = append(o.PreExec, hooks...)
	}
}

// WithCwd sets the working directory for the child process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the child process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithStdinData writes data to the child right after spawn and closes the
// input stream once it has flushed.
func WithStdinData(data []byte) Option {
	return func(o *Options) {
		o.StdinData = data
	}
}
