package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mathrace/internal/game/room"
	"github.com/cory-johannsen/mathrace/internal/game/session"
)

var (
	// ErrUnknownClient is returned when a request names a client that is not connected.
	ErrUnknownClient = errors.New("unknown client")
	// ErrHandlerPanic is returned when handling a request panicked.
	ErrHandlerPanic = errors.New("request handler panicked")
)

// HandlerOptions tunes client-visible behaviour of the Handler.
type HandlerOptions struct {
	// ReplyErrors sends an "error" message to the connection whose request was rejected.
	// When false, rejections are only logged.
	ReplyErrors bool
}

// Handler interprets client requests against the room and client registries.
// All methods are safe for concurrent use.
type Handler struct {
	rooms   *room.Registry
	clients *session.Manager
	logger  *zap.Logger
	opts    HandlerOptions
}

// NewHandler creates a Handler.
//
// Precondition: rooms, clients and logger must be non-nil.
func NewHandler(rooms *room.Registry, clients *session.Manager, logger *zap.Logger, opts HandlerOptions) *Handler {
	return &Handler{
		rooms:   rooms,
		clients: clients,
		logger:  logger,
		opts:    opts,
	}
}

// Connect registers a new client and queues its "connect" message.
//
// Postcondition: Returns the registered client; its Outbound already holds the connect message.
func (h *Handler) Connect() (*session.Client, error) {
	c, err := h.clients.AddClient()
	if err != nil {
		return nil, err
	}
	data, err := encodeConnect(c.ID)
	if err != nil {
		return nil, fmt.Errorf("encoding connect: %w", err)
	}
	if err := c.Outbound.Push(data); err != nil {
		return nil, err
	}
	h.logger.Info("client connected", zap.String("client_id", c.ID))
	return c, nil
}

// Disconnect unregisters connID and detaches its players from every room.
//
// The client is removed before its players are detached; join relies on this
// order to detach a player added concurrently with the disconnect.
func (h *Handler) Disconnect(connID string) {
	if err := h.clients.RemoveClient(connID); err != nil {
		h.logger.Debug("disconnect of unregistered client", zap.String("client_id", connID), zap.Error(err))
	}
	rooms := h.rooms.Detach(connID)
	h.logger.Info("client disconnected",
		zap.String("client_id", connID),
		zap.Strings("detached_from", rooms),
	)
}

// HandleMessage decodes and applies one request received on connection connID.
//
// Postcondition: A rejected request leaves all state unchanged and returns the reason;
// the reason is logged and, with ReplyErrors, sent to connID.
func (h *Handler) HandleMessage(connID string, data []byte) (err error) {
	var req Request
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, req.Method, r)
		}
		if err != nil {
			h.reject(connID, req, err)
		}
	}()

	req, err = DecodeRequest(data)
	if err != nil {
		return err
	}

	switch req.Method {
	case MethodCreate:
		return h.create(req)
	case MethodJoin:
		return h.join(req)
	case MethodStart:
		_, err = h.rooms.Start(req.GameID, req.ClientID)
		if err == nil {
			h.logger.Info("game started", zap.String("game_id", req.GameID))
		}
		return err
	case MethodPlay:
		_, err = h.rooms.Play(req.GameID, req.ClientID, *req.IsError)
		return err
	case MethodFinish:
		_, err = h.rooms.Finish(req.GameID, req.ClientID)
		if err == nil {
			h.logger.Info("game finished", zap.String("game_id", req.GameID))
		}
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
}

func (h *Handler) create(req Request) error {
	if _, ok := h.clients.Get(req.ClientID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClient, req.ClientID)
	}
	snap, err := h.rooms.Create(req.ClientID)
	if err != nil {
		return err
	}
	data, err := encodeGame(MethodCreate, snap)
	if err != nil {
		return fmt.Errorf("encoding game: %w", err)
	}
	h.deliver(req.ClientID, snap.ID, data)
	h.logger.Info("game created",
		zap.String("game_id", snap.ID),
		zap.String("owner_id", snap.OwnerID),
		zap.Int("questions", len(snap.Questions)),
	)
	return nil
}

func (h *Handler) join(req Request) error {
	if _, ok := h.clients.Get(req.ClientID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClient, req.ClientID)
	}
	snap, err := h.rooms.Join(req.GameID, req.ClientID, req.Nickname)
	if err != nil {
		return err
	}
	if _, ok := h.clients.Get(req.ClientID); !ok {
		// Disconnected between the check above and the join.
		h.rooms.Detach(req.ClientID)
		if s, found := h.rooms.Lookup(req.GameID); found {
			snap = s
		}
	}
	data, err := encodeGame(MethodJoin, snap)
	if err != nil {
		return fmt.Errorf("encoding game: %w", err)
	}
	fanOut(snap, data, h.deliver)
	h.logger.Info("player joined",
		zap.String("game_id", snap.ID),
		zap.String("client_id", req.ClientID),
		zap.String("nickname", req.Nickname),
		zap.Int("players", len(snap.Players)),
	)
	return nil
}

// fanOut calls deliver for every attached player of snap.
func fanOut(snap room.Snapshot, data []byte, deliver func(clientID, gameID string, data []byte)) {
	for _, p := range snap.Players {
		if p.Detached {
			continue
		}
		deliver(p.ClientID, snap.ID, data)
	}
}

func (h *Handler) deliver(clientID, gameID string, data []byte) {
	if err := h.clients.Push(clientID, data); err != nil {
		h.logger.Debug("delivery dropped",
			zap.String("client_id", clientID),
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}
}

func (h *Handler) reject(connID string, req Request, err error) {
	h.logger.Warn("request rejected",
		zap.String("conn_id", connID),
		zap.String("method", string(req.Method)),
		zap.String("client_id", req.ClientID),
		zap.String("game_id", req.GameID),
		zap.String("kind", ErrorKind(err)),
		zap.Error(err),
	)
	if !h.opts.ReplyErrors {
		return
	}
	data, encErr := encodeError(req.Method, err)
	if encErr != nil {
		return
	}
	h.deliver(connID, req.GameID, data)
}

// ErrorKind classifies err for logs: "not_found", "capacity", "invalid_state",
// "unauthorized", "malformed" or "internal". ErrHandlerPanic is "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrPlayerNotFound), errors.Is(err, ErrUnknownClient):
		return "not_found"
	case errors.Is(err, room.ErrRoomFull):
		return "capacity"
	case errors.Is(err, room.ErrInvalidState), errors.Is(err, room.ErrAlreadyJoined):
		return "invalid_state"
	case errors.Is(err, room.ErrNotOwner):
		return "unauthorized"
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownMethod):
		return "malformed"
	default:
		return "internal"
	}
}
