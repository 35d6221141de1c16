package websocket_test

import (
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/mathrace/internal/config"
	"github.com/cory-johannsen/mathrace/internal/frontend/websocket"
	"github.com/cory-johannsen/mathrace/internal/game/rng"
	"github.com/cory-johannsen/mathrace/internal/game/room"
	"github.com/cory-johannsen/mathrace/internal/game/session"
	"github.com/cory-johannsen/mathrace/internal/gameserver"
	"github.com/cory-johannsen/mathrace/internal/testutil"
)

// countingHandler wraps the game handler and counts session callbacks.
type countingHandler struct {
	*gameserver.Handler
	connects    atomic.Int32
	disconnects atomic.Int32
}

func (h *countingHandler) Connect() (*session.Client, error) {
	h.connects.Add(1)
	return h.Handler.Connect()
}

func (h *countingHandler) Disconnect(connID string) {
	h.disconnects.Add(1)
	h.Handler.Disconnect(connID)
}

func wsConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		ReadLimit:    4096,
		WriteTimeout: 2 * time.Second,
		PongTimeout:  5 * time.Second,
		PingInterval: 4 * time.Second,
		SendBuffer:   64,
	}
}

type harness struct {
	acc     *websocket.Acceptor
	handler *countingHandler
	clients *session.Manager
	rooms   *room.Registry
	errCh   chan error
}

func startAcceptor(t *testing.T, cfg config.WebSocketConfig) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rooms := room.NewRegistry(rng.NewSeededSource(3), room.DefaultConfig(), nil)
	clients := session.NewManager(cfg.SendBuffer)
	h := &countingHandler{Handler: gameserver.NewHandler(rooms, clients, logger, gameserver.HandlerOptions{})}

	acc := websocket.NewAcceptor(config.ServerConfig{Host: "127.0.0.1", Port: 0}, cfg, h, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- acc.ListenAndServe()
	}()

	deadline := time.After(2 * time.Second)
	for !acc.IsRunning() || acc.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return &harness{acc: acc, handler: h, clients: clients, rooms: rooms, errCh: errCh}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.acc.Stop()
	select {
	case err := <-h.errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msg)
}

func TestAcceptor_ConnectAndCreate(t *testing.T) {
	h := startAcceptor(t, wsConfig())
	defer h.stop(t)

	client := testutil.NewWSClient(t, h.acc.Addr())
	hello := client.Read(2 * time.Second)
	require.Equal(t, "connect", hello["method"])
	clientID := hello["clientId"].(string)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, clientID)

	client.Send(map[string]any{"method": "create", "clientId": clientID})
	created := client.ReadMethod("create", 2*time.Second)
	game := created["game"].(map[string]any)
	assert.Equal(t, clientID, game["ownerId"])
	assert.Equal(t, 1, h.rooms.Count())
}

func TestAcceptor_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	h := startAcceptor(t, wsConfig())
	defer h.stop(t)

	client := testutil.NewWSClient(t, h.acc.Addr())
	clientID := client.Read(2 * time.Second)["clientId"].(string)

	client.SendRaw([]byte(`{"method":`))
	client.SendRaw([]byte(`{"method":"teleport"}`))
	client.Send(map[string]any{"method": "create", "clientId": clientID})
	created := client.ReadMethod("create", 2*time.Second)
	assert.NotEmpty(t, created["game"])
}

func TestAcceptor_ClientCloseDisconnects(t *testing.T) {
	h := startAcceptor(t, wsConfig())
	defer h.stop(t)

	client := testutil.NewWSClient(t, h.acc.Addr())
	client.Read(2 * time.Second)
	eventually(t, func() bool { return h.clients.ClientCount() == 1 }, "client registered")

	client.Close()
	eventually(t, func() bool { return h.handler.disconnects.Load() == 1 }, "disconnect called")
	eventually(t, func() bool { return h.clients.ClientCount() == 0 }, "client removed")
	eventually(t, func() bool { return h.acc.ConnectionCount() == 0 }, "connection released")
}

func TestAcceptor_MultipleClientsGetDistinctIDs(t *testing.T) {
	h := startAcceptor(t, wsConfig())
	defer h.stop(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		client := testutil.NewWSClient(t, h.acc.Addr())
		id := client.Read(2 * time.Second)["clientId"].(string)
		assert.False(t, seen[id], "duplicate client id %s", id)
		seen[id] = true
	}
	assert.Equal(t, int32(5), h.handler.connects.Load())
}

func TestAcceptor_JoinFanOutOverWire(t *testing.T) {
	h := startAcceptor(t, wsConfig())
	defer h.stop(t)

	owner := testutil.NewWSClient(t, h.acc.Addr())
	ownerID := owner.Read(2 * time.Second)["clientId"].(string)
	owner.Send(map[string]any{"method": "create", "clientId": ownerID})
	gameID := owner.ReadMethod("create", 2*time.Second)["game"].(map[string]any)["id"].(string)

	a := testutil.NewWSClient(t, h.acc.Addr())
	aID := a.Read(2 * time.Second)["clientId"].(string)
	a.Send(map[string]any{"method": "join", "clientId": aID, "nickname": "A", "gameId": gameID})
	a.ReadMethod("join", 2*time.Second)

	b := testutil.NewWSClient(t, h.acc.Addr())
	bID := b.Read(2 * time.Second)["clientId"].(string)
	b.Send(map[string]any{"method": "join", "clientId": bID, "nickname": "B", "gameId": gameID})

	for _, c := range []*testutil.WSClient{a, b} {
		msg := c.ReadMethod("join", 2*time.Second)
		assert.Len(t, msg["game"].(map[string]any)["clients"], 2)
	}
}

func TestAcceptor_StopSendsGoingAway(t *testing.T) {
	h := startAcceptor(t, wsConfig())

	client := testutil.NewWSClient(t, h.acc.Addr())
	client.Read(2 * time.Second)
	eventually(t, func() bool { return h.acc.ConnectionCount() == 1 }, "connection tracked")

	h.stop(t)

	code := client.ReadClose(2 * time.Second)
	assert.Contains(t, []int{gws.CloseGoingAway, gws.CloseNormalClosure}, code)
	assert.Equal(t, int32(1), h.handler.disconnects.Load())
	assert.False(t, h.acc.IsRunning())
}

func TestAcceptor_StopBeforeListenIsNoop(t *testing.T) {
	logger := zaptest.NewLogger(t)
	rooms := room.NewRegistry(rng.NewSeededSource(1), room.DefaultConfig(), nil)
	handler := gameserver.NewHandler(rooms, session.NewManager(8), logger, gameserver.HandlerOptions{})
	acc := websocket.NewAcceptor(config.ServerConfig{Host: "127.0.0.1", Port: 0}, wsConfig(), handler, logger)

	acc.Stop()
	assert.NoError(t, acc.ListenAndServe())
	assert.Empty(t, acc.Addr())
}

func TestAcceptor_OversizedFrameClosesConnection(t *testing.T) {
	cfg := wsConfig()
	cfg.ReadLimit = 64
	h := startAcceptor(t, cfg)
	defer h.stop(t)

	client := testutil.NewWSClient(t, h.acc.Addr())
	client.Read(2 * time.Second)

	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	client.SendRaw(big)

	code := client.ReadClose(2 * time.Second)
	assert.Equal(t, gws.CloseMessageTooBig, code)
	eventually(t, func() bool { return h.clients.ClientCount() == 0 }, "client removed")
}
