package websocket

import (
	"time"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mathrace/internal/config"
	"github.com/cory-johannsen/mathrace/internal/game/session"
)

// conn pairs an upgraded connection with its registered client.
// readPump is the only reader and writePump the only writer of raw.
type conn struct {
	raw    *gws.Conn
	client *session.Client
	cfg    config.WebSocketConfig
	logger *zap.Logger
}

func newConn(raw *gws.Conn, client *session.Client, cfg config.WebSocketConfig, logger *zap.Logger) *conn {
	return &conn{
		raw:    raw,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// readPump forwards every data frame to h until the peer goes away or stays
// silent past the pong timeout.
//
// Postcondition: Returns nil on a normal close, otherwise the read error.
func (c *conn) readPump(h SessionHandler) error {
	c.raw.SetReadLimit(c.cfg.ReadLimit)
	c.extendDeadline()
	c.raw.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		_, data, err := c.raw.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		c.extendDeadline()
		// Rejections are logged by the handler; the connection stays open.
		_ = h.HandleMessage(c.client.ID, data)
	}
}

func (c *conn) extendDeadline() {
	if err := c.raw.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		c.logger.Debug("setting read deadline", zap.String("client_id", c.client.ID), zap.Error(err))
	}
}

// writePump drains the client's Outbound in order and pings on every interval.
// A closed Outbound ends the pump with a normal close frame.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.raw.Close()
	}()

	for {
		select {
		case data, ok := <-c.client.Outbound.Messages():
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.raw.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
				return
			}
			if err := c.raw.WriteMessage(gws.TextMessage, data); err != nil {
				c.logger.Debug("writing message", zap.String("client_id", c.client.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.raw.WriteMessage(gws.PingMessage, nil); err != nil {
				c.logger.Debug("writing ping", zap.String("client_id", c.client.ID), zap.Error(err))
				return
			}
		}
	}
}
