package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"cinecircle/internal/shared"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

var errConnBroken = errors.New("connection broken")

// fakeConn records every frame it is sent.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errConnBroken
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) envelopes(t *testing.T) []shared.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shared.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env shared.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) eventsOf(t *testing.T, event shared.EventType) []shared.Envelope {
	t.Helper()
	var out []shared.Envelope
	for _, env := range c.envelopes(t) {
		if env.Type == event {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestRegistry(t *testing.T) *Registry {
	return NewRegistry(slogt.New(t))
}
