package gameserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mathrace/internal/game/room"
	"github.com/cory-johannsen/mathrace/internal/game/session"
)

// Broadcaster pushes an "update" snapshot of every room to its players once per interval.
// Rooms are broadcast in every status, including waiting and finished.
//
// Invariant: at most one tick runs at a time.
type Broadcaster struct {
	interval time.Duration
	rooms    *room.Registry
	clients  *session.Manager
	logger   *zap.Logger
	tickMu   sync.Mutex
	ticks    atomic.Uint64
}

// NewBroadcaster returns a broadcaster that ticks every interval.
//
// Precondition: interval must be > 0; rooms, clients and logger must be non-nil.
func NewBroadcaster(interval time.Duration, rooms *room.Registry, clients *session.Manager, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		panic("gameserver.NewBroadcaster: interval must be > 0")
	}
	return &Broadcaster{
		interval: interval,
		rooms:    rooms,
		clients:  clients,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled. It never skips a room and never stops on a
// delivery failure.
//
// Postcondition: Returns nil once ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("broadcast loop running", zap.Duration("interval", b.interval))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcast loop stopped", zap.Uint64("ticks", b.ticks.Load()))
			return nil
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick broadcasts one snapshot of every room. Concurrent calls run one after another.
func (b *Broadcaster) Tick() {
	b.tickMu.Lock()
	defer b.tickMu.Unlock()

	b.ticks.Add(1)
	for _, snap := range b.rooms.Snapshots() {
		data, err := encodeUpdate(snap)
		if err != nil {
			b.logger.Error("encoding update", zap.String("game_id", snap.ID), zap.Error(err))
			continue
		}
		fanOut(snap, data, b.deliver)
	}
}

// Ticks returns the number of completed ticks.
func (b *Broadcaster) Ticks() uint64 {
	return b.ticks.Load()
}

func (b *Broadcaster) deliver(clientID, gameID string, data []byte) {
	if err := b.clients.Push(clientID, data); err != nil {
		b.logger.Debug("update dropped",
			zap.String("client_id", clientID),
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}
}
