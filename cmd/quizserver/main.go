// Package main provides the quiz server: it wires configuration, the room
// registry, the broadcast loop and the WebSocket acceptor together.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mathrace/internal/config"
	"github.com/cory-johannsen/mathrace/internal/frontend/websocket"
	"github.com/cory-johannsen/mathrace/internal/game/rng"
	"github.com/cory-johannsen/mathrace/internal/game/room"
	"github.com/cory-johannsen/mathrace/internal/game/session"
	"github.com/cory-johannsen/mathrace/internal/gameserver"
	"github.com/cory-johannsen/mathrace/internal/observability"
	"github.com/cory-johannsen/mathrace/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and environment only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting quiz server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Int("question_level", cfg.Game.QuestionLevel),
		zap.Int("question_count", cfg.Game.QuestionCount),
		zap.Bool("enforce_owner", cfg.Game.EnforceOwner),
	)

	rooms := room.NewRegistry(rng.NewCryptoSource(), gameserver.RoomConfig(cfg.Game), gameserver.OwnershipPolicy(cfg.Game))
	clients := session.NewManager(cfg.WebSocket.SendBuffer)
	handler := gameserver.NewHandler(rooms, clients,
		observability.Named(logger, observability.ComponentHandler), gameserver.Options(cfg.Game))
	broadcaster := gameserver.NewBroadcaster(cfg.Game.BroadcastInterval, rooms, clients,
		observability.Named(logger, observability.ComponentBroadcast))
	acceptor := websocket.NewAcceptor(cfg.Server, cfg.WebSocket, handler,
		observability.Named(logger, observability.ComponentWebSocket))

	lifecycle := server.NewLifecycle(observability.Named(logger, observability.ComponentLifecycle))

	lifecycle.Add("broadcast", &server.FuncService{
		StartFn: broadcaster.Run,
	})

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: func(context.Context) error {
			return acceptor.ListenAndServe()
		},
		StopFn: acceptor.Stop,
	})

	logger.Info("server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
