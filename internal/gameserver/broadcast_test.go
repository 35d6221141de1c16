package gameserver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/mathrace/internal/game/session"
	"github.com/cory-johannsen/mathrace/internal/gameserver"
)

func TestNewBroadcaster_PanicsOnZeroInterval(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	assert.Panics(t, func() {
		gameserver.NewBroadcaster(0, f.rooms, f.clients, zaptest.NewLogger(t))
	})
}

func TestBroadcaster_TickSendsUpdateForWaitingRoom(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	owner := f.connect(t)
	gameID := f.createGame(t, owner)
	bob := f.connect(t)
	require.NoError(t, f.send(t, bob, map[string]any{"method": "join", "clientId": bob.ID, "nickname": "Bob", "gameId": gameID}))
	next(t, bob)

	b := gameserver.NewBroadcaster(time.Hour, f.rooms, f.clients, zaptest.NewLogger(t))
	b.Tick()

	msg := next(t, bob)
	assert.Equal(t, "update", msg["method"])
	assert.Equal(t, gameID, msg["gameId"])
	assert.Equal(t, owner.ID, msg["ownerId"])
	assert.Equal(t, "waiting", msg["status"])
	assert.NotContains(t, msg, "questions")
	players := msg["players"].([]any)
	require.Len(t, players, 1)
	assert.Equal(t, "Bob", players[0].(map[string]any)["nickname"])
	state := msg["state"].(map[string]any)[bob.ID].(map[string]any)
	assert.Equal(t, float64(0), state["currentQuestion"])

	// The owner is not a player and receives nothing.
	assertSilent(t, owner)
	assert.Equal(t, uint64(1), b.Ticks())
}

func TestBroadcaster_TickReflectsProgress(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	owner := f.connect(t)
	gameID := f.createGame(t, owner)
	require.NoError(t, f.send(t, owner, map[string]any{"method": "join", "clientId": owner.ID, "nickname": "Own", "gameId": gameID}))
	next(t, owner)
	require.NoError(t, f.send(t, owner, map[string]any{"method": "start", "gameId": gameID}))
	require.NoError(t, f.send(t, owner, map[string]any{"method": "play", "gameId": gameID, "clientId": owner.ID, "isError": true}))

	b := gameserver.NewBroadcaster(time.Hour, f.rooms, f.clients, zaptest.NewLogger(t))
	b.Tick()

	msg := next(t, owner)
	assert.Equal(t, "running", msg["status"])
	state := msg["state"].(map[string]any)[owner.ID].(map[string]any)
	assert.Equal(t, float64(1), state["errors"])
}

func TestBroadcaster_TickSkipsDetachedPlayers(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	owner := f.connect(t)
	gameID := f.createGame(t, owner)
	players := make([]*session.Client, 0, 2)
	for _, nick := range []string{"a", "b"} {
		c := f.connect(t)
		require.NoError(t, f.send(t, c, map[string]any{"method": "join", "clientId": c.ID, "nickname": nick, "gameId": gameID}))
		players = append(players, c)
	}
	for _, c := range players {
		for len(c.Outbound.Messages()) > 0 {
			<-c.Outbound.Messages()
		}
	}
	f.handler.Disconnect(players[0].ID)

	b := gameserver.NewBroadcaster(time.Hour, f.rooms, f.clients, zaptest.NewLogger(t))
	b.Tick()

	msg := next(t, players[1])
	assert.Len(t, msg["players"], 2)
	_, open := <-players[0].Outbound.Messages()
	assert.False(t, open)
}

func TestBroadcaster_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	c := f.connect(t)
	gameID := f.createGame(t, c)
	require.NoError(t, f.send(t, c, map[string]any{"method": "join", "clientId": c.ID, "nickname": "x", "gameId": gameID}))
	next(t, c)

	b := gameserver.NewBroadcaster(5*time.Millisecond, f.rooms, f.clients, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	msg := next(t, c)
	assert.Equal(t, "update", msg["method"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, b.Ticks(), uint64(1))
}

func TestBroadcaster_ConcurrentTicksAreAllDelivered(t *testing.T) {
	f := newFixture(t, gameserver.HandlerOptions{}, nil)
	owner := f.connect(t)
	gameID := f.createGame(t, owner)
	c := f.connect(t)
	require.NoError(t, f.send(t, c, map[string]any{"method": "join", "clientId": c.ID, "nickname": "x", "gameId": gameID}))
	next(t, c)

	b := gameserver.NewBroadcaster(time.Hour, f.rooms, f.clients, zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				b.Tick()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(20), b.Ticks())
	for i := 0; i < 20; i++ {
		assert.Equal(t, "update", next(t, c)["method"])
	}
	assertSilent(t, c)
}
