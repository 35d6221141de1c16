// Package websocket serves quiz clients over WebSocket connections and bridges
// each connection to a SessionHandler.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mathrace/internal/config"
	"github.com/cory-johannsen/mathrace/internal/game/session"
)

const shutdownTimeout = 5 * time.Second

// SessionHandler owns the client registry and request handling for the acceptor.
type SessionHandler interface {
	// Connect registers a new client whose Outbound the acceptor drains.
	Connect() (*session.Client, error)
	// HandleMessage applies one inbound text frame from connID.
	HandleMessage(connID string, data []byte) error
	// Disconnect releases connID after its connection is gone.
	Disconnect(connID string)
}

// Acceptor upgrades HTTP requests on any path to WebSocket connections and
// runs one read pump and one write pump per connection.
type Acceptor struct {
	addr     string
	cfg      config.WebSocketConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader gws.Upgrader

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	conns    map[*gws.Conn]struct{}
	running  bool
	stopped  bool
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor.
//
// Precondition: cfg must pass config validation; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(srv config.ServerConfig, cfg config.WebSocketConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		addr:    srv.Addr(),
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*gws.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves connections until
// Stop is called. This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", a.serveWS)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		listener.Close()
		return nil
	}
	a.listener = listener
	a.srv = srv
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	if !a.track(raw) {
		raw.Close()
		return
	}
	defer a.untrack(raw)

	start := time.Now()
	client, err := a.handler.Connect()
	if err != nil {
		a.logger.Error("registering client",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		closeWith(raw, gws.CloseTryAgainLater, "server busy")
		raw.Close()
		return
	}

	a.logger.Info("websocket connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("client_id", client.ID),
	)

	c := newConn(raw, client, a.cfg, a.logger)
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump()
	}()

	err = c.readPump(a.handler)
	a.handler.Disconnect(client.ID)
	<-written
	raw.Close()

	if err != nil {
		a.logger.Debug("session ended",
			zap.String("client_id", client.ID),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	a.logger.Info("session ended cleanly",
		zap.String("client_id", client.ID),
		zap.Duration("duration", time.Since(start)),
	)
}

func (a *Acceptor) track(raw *gws.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return false
	}
	a.conns[raw] = struct{}{}
	a.wg.Add(1)
	return true
}

func (a *Acceptor) untrack(raw *gws.Conn) {
	a.mu.Lock()
	delete(a.conns, raw)
	a.mu.Unlock()
	a.wg.Done()
}

// Stop stops accepting, sends a going-away close frame to every open connection,
// and waits for their sessions to end.
//
// Postcondition: All connections are closed and their goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	a.stopped = true
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	srv := a.srv
	open := make([]*gws.Conn, 0, len(a.conns))
	for raw := range a.conns {
		open = append(open, raw)
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	for _, raw := range open {
		closeWith(raw, gws.CloseGoingAway, "server shutting down")
		raw.Close()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped", zap.Int("closed_connections", len(open)))
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// ConnectionCount returns the number of open connections.
func (a *Acceptor) ConnectionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func closeWith(raw *gws.Conn, code int, reason string) {
	_ = raw.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
