package fanout

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/events"
)

func newTestHub() *Hub {
	return NewHub(nil, nil, events.NewLocalBus(), clockwork.NewFakeClock(), config.DefaultTuning(), DefaultConnConfig())
}

func newTestConn(h *Hub) *Conn {
	return &Conn{ID: "test", hub: h, send: make(chan []byte, 4)}
}

func TestSubscribeRegistersConnection(t *testing.T) {
	h := newTestHub()
	conn := newTestConn(h)

	h.subscribe(conn, "a1", 42)

	require.Equal(t, []string{"a1"}, h.subscribedAuctions())
	require.Len(t, h.connsFor("a1"), 1)
	assert.Equal(t, int64(42), conn.userID)
}

func TestSubscribeSwitchesAuction(t *testing.T) {
	h := newTestHub()
	conn := newTestConn(h)

	h.subscribe(conn, "a1", 42)
	h.subscribe(conn, "a2", 42)

	assert.Empty(t, h.connsFor("a1"))
	assert.Len(t, h.connsFor("a2"), 1)
	assert.Equal(t, []string{"a2"}, h.subscribedAuctions())
}

func TestUnregisterRemovesConnection(t *testing.T) {
	h := newTestHub()
	conn := newTestConn(h)

	h.subscribe(conn, "a1", 42)
	h.unregister(conn)

	assert.Empty(t, h.subscribedAuctions())

	// The send channel is closed so the write pump drains out.
	_, open := <-conn.send
	assert.False(t, open)
}

func TestUnregisterTwiceIsSafe(t *testing.T) {
	h := newTestHub()
	conn := newTestConn(h)

	h.subscribe(conn, "a1", 42)
	h.unregister(conn)
	h.unregister(conn)

	assert.Empty(t, h.subscribedAuctions())
}

func TestDeliverQueuesFrame(t *testing.T) {
	h := newTestHub()
	conn := newTestConn(h)
	h.subscribe(conn, "a1", 0)

	h.deliver(conn, []byte(`{"type":"pong"}`))

	frame := <-conn.send
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))
}
