package spawn

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coupled "github.com/mwri/forkcoupled/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPipes(t *testing.T) {
	pipes, err := NewPipes()
	require.NoError(t, err)

	defer pipes.CloseAll()

	for _, f := range []*os.File{pipes.InR, pipes.InW, pipes.OutR, pipes.OutW, pipes.ErrR, pipes.ErrW} {
		require.NotNil(t, f)
	}

	// Pipes are independent channels: bytes written to one come out of
	// its own read end only.
	_, err = pipes.OutW.WriteString("out")
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := pipes.OutR.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "out", string(buf[:n]))
}

func TestStart_Echo(t *testing.T) {
	res, err := Start(testLogger(), Config{Argv: []string{"echo", "hello"}})
	require.NoError(t, err)

	defer reap(res)

	require.NotNil(t, res.Proc)
	require.Positive(t, res.Pid)
	require.NotEqual(t, os.Getpid(), res.Pid)

	out, err := io.ReadAll(res.Stdout)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(out))
}

func TestStart_ResolvesBareNameThroughPath(t *testing.T) {
	// "echo" carries no path separator, so it must be resolved via PATH.
	res, err := Start(testLogger(), Config{Argv: []string{"echo"}})
	require.NoError(t, err)

	reap(res)
}

func TestStart_UnknownExecutable(t *testing.T) {
	_, err := Start(testLogger(), Config{Argv: []string{"no-such-executable-fc-test"}})
	require.Error(t, err)

	var startErr *coupled.StartError

	require.ErrorAs(t, err, &startErr)
	require.Equal(t, "no-such-executable-fc-test", startErr.Path)
}

func TestStart_Env(t *testing.T) {
	res, err := Start(testLogger(), Config{
		Argv: []string{"sh", "-c", "printf %s \"$FC_TEST_VAR\""},
		Env:  map[string]string{"FC_TEST_VAR": "wired"},
	})
	require.NoError(t, err)

	defer reap(res)

	out, err := io.ReadAll(res.Stdout)
	require.NoError(t, err)
	require.Equal(t, "wired", string(out))
}

func TestStart_Dir(t *testing.T) {
	dir := t.TempDir()

	res, err := Start(testLogger(), Config{
		Argv: []string{"sh", "-c", "pwd -P"},
		Dir:  dir,
	})
	require.NoError(t, err)

	defer reap(res)

	out, err := io.ReadAll(res.Stdout)
	require.NoError(t, err)
	require.Contains(t, string(out), resolveDir(t, dir))
}

func TestStart_PreExecHooksRunInOrder(t *testing.T) {
	var order []int

	res, err := Start(testLogger(), Config{
		Argv: []string{"true"},
		PreExec: []PreExecFunc{
			func(ChildStdio) error { order = append(order, 1); return nil },
			func(ChildStdio) error { order = append(order, 2); return nil },
		},
	})
	require.NoError(t, err)
	reap(res)

	require.Equal(t, []int{1, 2}, order)
}

func TestStart_PreExecHookObservesChildStdio(t *testing.T) {
	res, err := Start(testLogger(), Config{
		Argv: []string{"sh", "-c", "printf main"},
		PreExec: []PreExecFunc{
			func(stdio ChildStdio) error {
				_, err := stdio.Stdout.WriteString("pre:")

				return err
			},
		},
	})
	require.NoError(t, err)

	defer reap(res)

	// The hook's bytes entered the pipe before the child ran, so they
	// arrive first on the parent-side read end.
	out, err := io.ReadAll(res.Stdout)
	require.NoError(t, err)
	require.Equal(t, "pre:main", string(out))
}

func TestStart_PreExecHookFailureAbortsChild(t *testing.T) {
	ran := false

	res, err := Start(testLogger(), Config{
		Argv: []string{"echo", "never"},
		PreExec: []PreExecFunc{
			func(ChildStdio) error { return fmt.Errorf("refused") },
			func(ChildStdio) error { ran = true; return nil },
		},
	})
	require.NoError(t, err, "hook failure is child-side, not a spawn error")
	require.Nil(t, res.Proc)
	require.Zero(t, res.Pid)
	require.False(t, ran, "hooks after the failing one must not run")

	// The child never ran; its streams close immediately with no data.
	out, err := io.ReadAll(res.Stdout)
	require.NoError(t, err)
	require.Empty(t, out)

	errOut, err := io.ReadAll(res.Stderr)
	require.NoError(t, err)
	require.Empty(t, errOut)

	_ = res.Stdin.Close()
	_ = res.Stdout.Close()
	_ = res.Stderr.Close()
}

func reap(res *Result) {
	_ = res.Stdin.Close()
	_ = res.Stdout.Close()
	_ = res.Stderr.Close()

	if res.Proc != nil {
		_, _ = res.Proc.Wait()
	}
}

func resolveDir(t *testing.T, dir string) string {
	t.Helper()

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return dir
	}

	return resolved
}
