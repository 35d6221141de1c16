// Package session tracks connected clients and their outbound message queues.
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutboundClosed is returned when pushing to a closed Outbound.
	ErrOutboundClosed = errors.New("outbound closed")
	// ErrOutboundFull is returned when the Outbound buffer has no room.
	ErrOutboundFull = errors.New("outbound buffer full")
)

// Outbound is a client's buffered queue of encoded messages.
// Exactly one writer (the transport's write pump) drains Messages, which
// serializes delivery per client.
type Outbound struct {
	clientID string
	messages chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbound creates an Outbound for clientID.
//
// Precondition: clientID must be non-empty.
// Postcondition: Returns an Outbound with an open channel; bufferSize <= 0 selects 64.
func NewOutbound(clientID string, bufferSize int) *Outbound {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbound{
		clientID: clientID,
		messages: make(chan []byte, bufferSize),
	}
}

// Push enqueues data without blocking.
//
// Postcondition: data is enqueued, or ErrOutboundClosed / ErrOutboundFull is returned.
func (o *Outbound) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("client %s: %w", o.clientID, ErrOutboundClosed)
	}
	select {
	case o.messages <- data:
		return nil
	default:
		return fmt.Errorf("client %s: %w", o.clientID, ErrOutboundFull)
	}
}

// Messages returns the read side of the queue. It is closed by Close.
func (o *Outbound) Messages() <-chan []byte {
	return o.messages
}

// Close closes the queue. Further pushes fail. Idempotent.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.messages)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbound) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
