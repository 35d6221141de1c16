package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrClientNotFound is returned when a client id is not registered.
var ErrClientNotFound = errors.New("client not found")

// Client is a connected peer.
type Client struct {
	// ID is the lower-case UUIDv4 assigned on connect.
	ID string
	// Outbound carries messages to the client's transport.
	Outbound *Outbound
}

// Manager maps client ids to their outbound queues.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	bufferSize int
}

// NewManager creates an empty Manager whose clients get outbound buffers of bufferSize.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		bufferSize: bufferSize,
	}
}

// AddClient registers a new client under a fresh random id.
//
// Postcondition: Returns a client whose ID is unique among registered clients.
func (m *Manager) AddClient() (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Collisions are retried a bounded number of times.
	for attempt := 0; attempt < 3; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("generating client id: %w", err)
		}
		key := id.String()
		if _, taken := m.clients[key]; taken {
			continue
		}
		c := &Client{ID: key, Outbound: NewOutbound(key, m.bufferSize)}
		m.clients[key] = c
		return c, nil
	}
	return nil, errors.New("generating client id: repeated collisions")
}

// RemoveClient unregisters id and closes its outbound queue.
//
// Postcondition: Returns ErrClientNotFound if id was not registered.
func (m *Manager) RemoveClient(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrClientNotFound, id)
	}
	c.Outbound.Close()
	delete(m.clients, id)
	return nil
}

// Get returns the client registered under id.
//
// Postcondition: Returns (client, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

// Push enqueues data for client id.
//
// Postcondition: Returns ErrClientNotFound, ErrOutboundClosed or ErrOutboundFull on failure.
func (m *Manager) Push(id string, data []byte) error {
	c, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrClientNotFound, id)
	}
	return c.Outbound.Push(data)
}

// ClientCount returns the number of registered clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
