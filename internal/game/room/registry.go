package room

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cory-johannsen/mathrace/internal/game/question"
	"github.com/cory-johannsen/mathrace/internal/game/rng"
)

// IDLength is the number of letters in a room id.
const IDLength = 6

// Config holds registry limits and the question batch parameters for new rooms.
type Config struct {
	// MaxPlayers caps the roster of every room.
	MaxPlayers int
	// MaxIDAttempts bounds the draws made to find a free room id.
	MaxIDAttempts int
	// Questions is used to generate the batch assigned to each new room.
	Questions question.Params
}

// DefaultConfig returns a cap of five players and the default question batch.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:    5,
		MaxIDAttempts: 64,
		Questions:     question.DefaultParams(),
	}
}

// Registry maps room ids to rooms.
// All methods are safe for concurrent use.
//
// Lock order: Registry.mu before Room.mu.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	src    rng.Source
	cfg    Config
	policy Policy
}

// NewRegistry creates an empty Registry.
//
// Precondition: src must be non-nil; cfg.MaxPlayers and cfg.MaxIDAttempts must be > 0.
// Postcondition: A nil policy is replaced by AllowAll.
func NewRegistry(src rng.Source, cfg Config, policy Policy) *Registry {
	if policy == nil {
		policy = AllowAll
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		src:    src,
		cfg:    cfg,
		policy: policy,
	}
}

// Create registers a new waiting room owned by ownerID with a fresh question batch.
//
// Precondition: ownerID must be non-empty.
// Postcondition: Returns the new room's snapshot; its id differs from every other registered room.
func (g *Registry) Create(ownerID string) (Snapshot, error) {
	questions, err := question.Generate(g.src, g.cfg.Questions)
	if err != nil {
		return Snapshot{}, fmt.Errorf("generating questions: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := g.allocateID()
	if err != nil {
		return Snapshot{}, err
	}
	r := newRoom(id, ownerID, questions)
	g.rooms[id] = r

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), nil
}

// allocateID draws ids until one is free. Caller must hold g.mu.
func (g *Registry) allocateID() (string, error) {
	for n := 0; n < g.cfg.MaxIDAttempts; n++ {
		id := drawID(g.src)
		if _, taken := g.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w after %d draws", ErrIDSpaceExhausted, g.cfg.MaxIDAttempts)
}

// drawID returns IDLength letters, each independently upper or lower case.
func drawID(src rng.Source) string {
	b := make([]byte, IDLength)
	for i := range b {
		c := byte('A' + src.Intn(26))
		if src.Intn(2) == 1 {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

// Lookup returns the snapshot of roomID.
//
// Postcondition: Returns (snapshot, true) if found, or (zero, false) otherwise.
func (g *Registry) Lookup(roomID string) (Snapshot, bool) {
	r, ok := g.get(roomID)
	if !ok {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), true
}

func (g *Registry) get(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// Join appends a player for clientID to roomID.
//
// Precondition: clientID must be non-empty.
// Postcondition: On success the player is last in join order with zero errors and progress.
// Returns ErrRoomNotFound, ErrRoomFull, ErrInvalidState or ErrAlreadyJoined otherwise,
// leaving the roster unchanged.
func (g *Registry) Join(roomID, clientID, nickname string) (Snapshot, error) {
	r, ok := g.get(roomID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrRoomNotFound, roomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) >= g.cfg.MaxPlayers {
		return Snapshot{}, fmt.Errorf("%w: %q has %d players", ErrRoomFull, roomID, len(r.order))
	}
	if r.status != StatusWaiting {
		return Snapshot{}, fmt.Errorf("%w: cannot join %q while %s", ErrInvalidState, roomID, r.status)
	}
	if _, exists := r.players[clientID]; exists {
		return Snapshot{}, fmt.Errorf("%w: %q in %q", ErrAlreadyJoined, clientID, roomID)
	}

	r.order = append(r.order, clientID)
	r.players[clientID] = &Player{ClientID: clientID, Nickname: nickname}
	return r.snapshot(), nil
}

// Start moves roomID to running.
//
// Postcondition: Status is StatusRunning on success. A finished room is never restarted.
func (g *Registry) Start(roomID, callerID string) (Snapshot, error) {
	return g.transition(roomID, callerID, OpStart, func(r *Room) error {
		if r.status == StatusFinished {
			return fmt.Errorf("%w: %q already finished", ErrInvalidState, roomID)
		}
		r.status = StatusRunning
		return nil
	})
}

// Finish moves roomID to finished from any status.
//
// Postcondition: Status is StatusFinished on success.
func (g *Registry) Finish(roomID, callerID string) (Snapshot, error) {
	return g.transition(roomID, callerID, OpFinish, func(r *Room) error {
		r.status = StatusFinished
		return nil
	})
}

func (g *Registry) transition(roomID, callerID string, op Op, apply func(*Room) error) (Snapshot, error) {
	r, ok := g.get(roomID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrRoomNotFound, roomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := g.policy(op, r.ownerID, callerID); err != nil {
		return Snapshot{}, err
	}
	if err := apply(r); err != nil {
		return Snapshot{}, err
	}
	return r.snapshot(), nil
}

// Play records one answer by clientID: a miss increments Errors, a hit advances
// CurrentQuestion. Progress is not bounded by the question batch.
//
// Postcondition: Only clientID's record changes. Returns the updated record.
func (g *Registry) Play(roomID, clientID string, isError bool) (Player, error) {
	r, ok := g.get(roomID)
	if !ok {
		return Player{}, fmt.Errorf("%w: %q", ErrRoomNotFound, roomID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[clientID]
	if !ok {
		return Player{}, fmt.Errorf("%w: %q in %q", ErrPlayerNotFound, clientID, roomID)
	}
	if isError {
		p.Errors++
	} else {
		p.CurrentQuestion++
	}
	return *p, nil
}

// Detach marks every player record of clientID as detached.
//
// Postcondition: Returns the ids of the rooms that were touched (may be empty).
func (g *Registry) Detach(clientID string) []string {
	var touched []string
	for _, r := range g.all() {
		r.mu.Lock()
		if p, ok := r.players[clientID]; ok {
			p.Detached = true
			touched = append(touched, r.id)
		}
		r.mu.Unlock()
	}
	return touched
}

// Snapshots returns a copy of every registered room, each taken under its own lock.
func (g *Registry) Snapshots() []Snapshot {
	rooms := g.all()
	snaps := make([]Snapshot, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		snaps = append(snaps, r.snapshot())
		r.mu.Unlock()
	}
	return snaps
}

func (g *Registry) all() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Rooms returns the ids of every registered room in ascending order.
func (g *Registry) Rooms() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of registered rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
