package forkcoupled

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwri/forkcoupled/reactor"
)

func newTestLoop(t *testing.T) *reactor.Loop {
	t.Helper()

	loop, err := reactor.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	return loop
}

// driveLoop runs the loop until every monitored stream has finished. The
// generous deadline only trips when a stream never finishes, which is
// itself a test failure.
func driveLoop(t *testing.T, loop *reactor.Loop) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, loop.Run(ctx))
}

// capture records the read and finish events for one stream name.
type capture struct {
	reads    []Event
	finishes []Event
}

func captureEvents(p *Process, streamName string) *capture {
	c := &capture{}

	p.On(readEventName(streamName), func(_ *Process, e Event) {
		c.reads = append(c.reads, e)
	})
	p.On(finishEventName(streamName), func(_ *Process, e Event) {
		c.finishes = append(c.finishes, e)
	})

	return c
}

// joined concatenates the captured read chunks in arrival order.
func (c *capture) joined() string {
	var all []byte
	for _, e := range c.reads {
		all = append(all, e.Data...)
	}

	return string(all)
}
