package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/ghost-dash/internal/hub"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

type client struct {
	conn *websocket.Conn
	in   chan types.ServerMessage
}

func newServer(t *testing.T, opts Options) (*hub.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx)
	srv := httptest.NewServer(Handler(h, opts, nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// dial connects a client whose reader keeps answering pings.
func dial(t *testing.T, url string) *client {
	t.Helper()
	c := &client{conn: dialRaw(t, url), in: make(chan types.ServerMessage, 16)}
	go func() {
		defer close(c.in)
		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				return
			}
			m, err := types.DecodeServer(data)
			if err != nil {
				continue
			}
			c.in <- m
		}
	}()
	return c
}

func (c *client) send(t *testing.T, m types.ClientMessage) {
	t.Helper()
	b, err := types.Encode(m)
	require.NoError(t, err)
	c.sendRaw(t, b)
}

func (c *client) sendRaw(t *testing.T, b []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.conn.Write(ctx, websocket.MessageText, b))
}

func (c *client) recv(t *testing.T) types.ServerMessage {
	t.Helper()
	select {
	case m, ok := <-c.in:
		if !ok {
			t.Fatalf("connection closed unexpectedly")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

func TestHandler_SessionLifecycle(t *testing.T) {
	_, url := newServer(t, Options{})
	host, guest, third := dial(t, url), dial(t, url), dial(t, url)

	host.send(t, types.CreateGame{})
	created, ok := host.recv(t).(types.GameCreated)
	require.True(t, ok)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, created.GameID)

	guest.send(t, types.JoinGame{GameID: created.GameID})
	assert.Equal(t, types.GameJoined{GameID: created.GameID}, guest.recv(t))
	assert.Equal(t, types.PlayerJoined{}, host.recv(t))

	third.send(t, types.JoinGame{GameID: created.GameID})
	assert.Equal(t, types.GameFull{}, third.recv(t))

	require.NoError(t, host.conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Equal(t, types.OpponentDisconnected{}, guest.recv(t))

	third.send(t, types.JoinGame{GameID: created.GameID})
	assert.Equal(t, types.GameNotFound{}, third.recv(t))
}

func TestHandler_RelayIsVerbatim(t *testing.T) {
	_, url := newServer(t, Options{})
	host, guest := dial(t, url), dial(t, url)

	host.send(t, types.CreateGame{})
	id := host.recv(t).(types.GameCreated).GameID
	guest.send(t, types.JoinGame{GameID: id})
	guest.recv(t)
	host.recv(t)

	// out-of-range values pass through untouched
	guest.sendRaw(t, []byte(`{"type":"player_state","gameId":"`+id+`","player":{"x":1e9,"y":-3,"vx":0,"vy":0,"dashCooldown":0,"isDashing":false,"dashPower":7,"dashCharging":false,"ghostActive":false,"ghostCooldown":0}}`))
	gs, ok := host.recv(t).(types.GameState)
	require.True(t, ok)
	snap, err := gs.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1e9, snap.X)
	assert.Equal(t, 7.0, snap.DashPower)
}

func TestHandler_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	_, url := newServer(t, Options{})
	c := dial(t, url)

	c.sendRaw(t, []byte(`not json`))
	c.sendRaw(t, []byte(`{"type":"teleport"}`))
	c.send(t, types.CreateGame{})

	_, ok := c.recv(t).(types.GameCreated)
	assert.True(t, ok)
}

func TestHandler_HeartbeatDropsSilentPeer(t *testing.T) {
	_, url := newServer(t, Options{HeartbeatInterval: 50 * time.Millisecond})
	host := dial(t, url)

	host.send(t, types.CreateGame{})
	id := host.recv(t).(types.GameCreated).GameID

	// never reads, so pings go unanswered
	silent := dialRaw(t, url)
	b, err := types.Encode(types.JoinGame{GameID: id})
	require.NoError(t, err)
	require.NoError(t, silent.Write(context.Background(), websocket.MessageText, b))

	assert.Equal(t, types.PlayerJoined{}, host.recv(t))
	assert.Equal(t, types.OpponentDisconnected{}, host.recv(t))
}

func TestHandler_HubShutdownClosesSockets(t *testing.T) {
	h, url := newServer(t, Options{})
	c := dial(t, url)
	c.send(t, types.CreateGame{})
	c.recv(t)

	require.True(t, h.Submit(hub.Shutdown{}))
	select {
	case _, ok := <-c.in:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("socket stayed open after shutdown")
	}
}
