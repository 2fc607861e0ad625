package forkcoupled

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBus_CallbacksRunInRegistrationOrder(t *testing.T) {
	p := &Process{bus: newEventBus()}

	var order []string

	p.On("read_stdout", func(_ *Process, _ Event) { order = append(order, "first") })
	p.On("read_stdout", func(_ *Process, _ Event) { order = append(order, "second") })
	p.On("read_stdout", func(_ *Process, _ Event) { order = append(order, "third") })

	p.emit(Event{Name: "read_stdout"})

	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestEventBus_CallbackReceivesHandleAndPayload(t *testing.T) {
	p := &Process{bus: newEventBus()}

	var (
		gotProc *Process
		gotData []byte
	)

	p.On("write_stdin", func(proc *Process, e Event) {
		gotProc = proc
		gotData = e.Data
	})

	p.emit(Event{Name: "write_stdin", Data: []byte("payload")})

	require.Same(t, p, gotProc)
	require.Equal(t, []byte("payload"), gotData)
}

func TestEventBus_EmitWithoutSubscribersIsNoOp(t *testing.T) {
	p := &Process{bus: newEventBus()}

	require.NotPanics(t, func() {
		p.emit(Event{Name: "finish_stdout", Cond: ConditionClosed})
	})
}

func TestEventBus_SubscribersAreNamespaced(t *testing.T) {
	p := &Process{bus: newEventBus()}

	var fired []string

	p.On("read_stdout", func(_ *Process, _ Event) { fired = append(fired, "stdout") })
	p.On("read_stderr", func(_ *Process, _ Event) { fired = append(fired, "stderr") })

	p.emit(Event{Name: "read_stderr"})

	require.Equal(t, []string{"stderr"}, fired)
}

func TestCondition_String(t *testing.T) {
	require.Equal(t, "none", ConditionNone.String())
	require.Equal(t, "closed", ConditionClosed.String())
	require.Equal(t, "errored", ConditionErrored.String())
	require.Equal(t, "timed_out", ConditionTimedOut.String())
}

func TestEventNames(t *testing.T) {
	require.Equal(t, EventReadStdout, readEventName("stdout"))
	require.Equal(t, EventFinishStdout, finishEventName("stdout"))
	require.Equal(t, EventReadStderr, readEventName("stderr"))
	require.Equal(t, EventFinishStderr, finishEventName("stderr"))
}
