package forkcoupled

// Event names emitted by a Process. The read/finish pairs are derived from
// the stream name; when stderr is merged its activity arrives under the
// stdout names, and when it is quashed the stderr pair never fires.
const (
	// EventWriteStdin fires before outbound data is written to the child.
	EventWriteStdin = "write_stdin"

	// EventReadStdout carries a chunk read from the child's output stream.
	EventReadStdout = "read_stdout"

	// EventFinishStdout fires exactly once when the output stream stops
	// being monitored.
	EventFinishStdout = "finish_stdout"

	// EventReadStderr carries a chunk read from the child's error stream.
	EventReadStderr = "read_stderr"

	// EventFinishStderr fires exactly once when the error stream stops
	// being monitored.
	EventFinishStderr = "finish_stderr"
)

// Condition is the reason a stream stopped being monitored.
type Condition int

const (
	// ConditionNone is the zero value; read and write events carry it.
	ConditionNone Condition = iota

	// ConditionClosed means the stream reached end-of-file.
	ConditionClosed

	// ConditionErrored means a read failed with an OS error.
	ConditionErrored

	// ConditionTimedOut means the stream's inactivity timeout elapsed.
	ConditionTimedOut
)

// String returns the condition name used in logs and event payloads.
func (c Condition) String() string {
	switch c {
	case ConditionClosed:
		return "closed"
	case ConditionErrored:
		return "errored"
	case ConditionTimedOut:
		return "timed_out"
	default:
		return "none"
	}
}

// Event is the payload delivered to subscribers. Read and write events
// carry Data; finish events carry Cond and, for errored streams, Err.
// Stream is nil only for write_stdin.
type Event struct {
	// Name is the event name the subscriber was registered under.
	Name string

	// Stream is the monitored stream the event concerns.
	Stream *Stream

	// Data is the chunk for read events and the outbound payload for
	// write_stdin. Chunk boundaries carry no meaning; this is a raw byte
	// stream, not records.
	Data []byte

	// Cond is the finish condition for finish events.
	Cond Condition

	// Err is the underlying OS error when Cond is ConditionErrored.
	Err error
}

// EventFunc is a subscriber callback. Callbacks run synchronously on the
// reactor goroutine, in registration order.
type EventFunc func(p *Process, e Event)

func readEventName(stream string) string {
	return "read_" + stream
}

func finishEventName(stream string) string {
	return "finish_" + stream
}

// eventBus is the per-handle publish/subscribe facility. It is composed
// into the Process rather than inherited. All access happens on the
// reactor goroutine, so no locking is needed.
type eventBus struct {
	handlers map[string][]EventFunc
}

func newEventBus() *eventBus {
	return &eventBus{handlers: make(map[string][]EventFunc)}
}

func (b *eventBus) on(name string, fn EventFunc) {
	b.handlers[name] = append(b.handlers[name], fn)
}

// emit invokes the subscribers registered for the event's name, in
// registration order. Emitting with no subscribers is a no-op.
func (b *eventBus) emit(p *Process, e Event) {
	for _, fn := range b.handlers[e.Name] {
		fn(p, e)
	}
}
