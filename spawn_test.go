package forkcoupled

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawn_EmptyCommand(t *testing.T) {
	loop := newTestLoop(t)

	p, err := Spawn(loop, nil)
	require.Nil(t, p)
	require.ErrorIs(t, err, ErrEmptyCommand)

	var cfgErr *ConfigError

	require.ErrorAs(t, err, &cfgErr)
}

func TestSpawn_QuashMergeConflict(t *testing.T) {
	loop := newTestLoop(t)

	p, err := Spawn(loop, []string{"echo"},
		WithQuashStderr(true),
		WithMergeStderr(true),
	)
	require.Nil(t, p, "no handle may exist when the conflict is detected")
	require.ErrorIs(t, err, ErrStderrModeConflict)

	var cfgErr *ConfigError

	require.ErrorAs(t, err, &cfgErr)
}

func TestSpawn_UnknownExecutable(t *testing.T) {
	loop := newTestLoop(t)

	_, err := Spawn(loop, []string{"no-such-executable-fc-test"})

	var startErr *StartError

	require.ErrorAs(t, err, &startErr)
}

func TestSpawn_PidPositiveAndDistinct(t *testing.T) {
	loop := newTestLoop(t)

	p, err := Spawn(loop, []string{"sh", "-c", "exit 0"})
	require.NoError(t, err)

	require.Positive(t, p.Pid())
	require.NotEqual(t, os.Getpid(), p.Pid())

	require.NoError(t, p.CloseStdin())
	driveLoop(t, loop)

	state, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 0, state.ExitCode())
}

func TestSpawn_Accessors(t *testing.T) {
	loop := newTestLoop(t)

	type ctrl struct{ name string }

	controller := &ctrl{name: "host"}

	p, err := Spawn(loop, []string{"sleep", "60"},
		WithRef("job-17"),
		WithController(controller),
		WithTimeout(30*time.Second),
		WithMergeStderr(true),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, p.Abort()) }()

	require.Equal(t, []string{"sleep", "60"}, p.Cmd())
	require.Equal(t, "sleep", p.Path())
	require.Equal(t, "job-17", p.Ref())
	require.Same(t, controller, p.Controller())
	require.Equal(t, 30*time.Second, p.Timeout())
	require.False(t, p.QuashStderr())
	require.True(t, p.MergeStderr())

	require.NotNil(t, p.Stdin())
	require.NotNil(t, p.Stdout())
	require.NotNil(t, p.Stderr())
	require.Empty(t, p.Stdin().Name())
	require.Equal(t, "stdout", p.Stdout().Name())
	require.Equal(t, "stdout", p.Stderr().Name(), "merged stderr reports the stdout name")

	// The accessor hands out a copy; the handle's command is immutable.
	cmd := p.Cmd()
	cmd[0] = "mutated"
	require.Equal(t, "sleep", p.Cmd()[0])
}

func TestSpawn_StderrNameFollowsMode(t *testing.T) {
	loop := newTestLoop(t)

	p, err := Spawn(loop, []string{"sleep", "60"})
	require.NoError(t, err)

	require.Equal(t, "stderr", p.Stderr().Name())
	require.NoError(t, p.Abort())

	quashed, err := Spawn(loop, []string{"sleep", "60"}, WithQuashStderr(true))
	require.NoError(t, err)

	require.Empty(t, quashed.Stderr().Name(), "quashed stderr is unnamed")
	require.NoError(t, quashed.Abort())

	driveLoop(t, loop)
}

func TestSpawn_WaitBeforeExitBlocksUntilDone(t *testing.T) {
	loop := newTestLoop(t)

	p, err := Spawn(loop, []string{"sh", "-c", "sleep 0.1; exit 7"})
	require.NoError(t, err)
	require.NoError(t, p.CloseStdin())

	state, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 7, state.ExitCode())

	// Wait is reap-once: a second call returns the same state.
	again, err := p.Wait()
	require.NoError(t, err)
	require.Same(t, state, again)

	driveLoop(t, loop)
}

func TestSpawn_HookFailureDoesNotLogSpawned(t *testing.T) {
	loop := newTestLoop(t)

	var logBuf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := Spawn(loop, []string{"echo", "never"},
		WithLogger(logger),
		WithPreExec(func(ChildStdio) error { return assertionError("vetoed") }),
	)
	require.NoError(t, err)
	require.Zero(t, p.Pid())

	require.Contains(t, logBuf.String(), "hook failed")
	require.NotContains(t, logBuf.String(), "spawned", "no child ran, so nothing was spawned")

	require.NoError(t, p.CloseStdin())
	driveLoop(t, loop)
}

func TestSpawn_StdinDataSkippedWhenHookFails(t *testing.T) {
	loop := newTestLoop(t)

	// With no child on the other end the initial write would hit a broken
	// pipe; the handle must still come back alive with pid zero.
	p, err := Spawn(loop, []string{"cat"},
		WithStdinData([]byte("never delivered")),
		WithPreExec(func(ChildStdio) error { return assertionError("vetoed") }),
	)
	require.NoError(t, err)
	require.Zero(t, p.Pid())

	require.NoError(t, p.CloseStdin())
	driveLoop(t, loop)

	_, err = p.Wait()
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSpawn_ErrorTypesSatisfyBaseInterface(t *testing.T) {
	loop := newTestLoop(t)

	_, err := Spawn(loop, nil)

	var coupledErr CoupledError

	require.True(t, errors.As(err, &coupledErr))
	require.True(t, coupledErr.IsCoupledError())
}
