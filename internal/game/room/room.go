// Package room provides the quiz room registry, the per-room player roster and
// the waiting → running → finished state machine.
package room

import (
	"errors"
	"sync"

	"github.com/cory-johannsen/mathrace/internal/game/question"
)

// Status is a room's position in its lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

var (
	// ErrRoomNotFound is returned when a room id is not registered.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a client has not joined the room.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrRoomFull is returned when a join would exceed the player cap.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidState is returned when an operation is not allowed in the room's status.
	ErrInvalidState = errors.New("invalid room state")
	// ErrAlreadyJoined is returned when a client joins a room it is already in.
	ErrAlreadyJoined = errors.New("player already joined")
	// ErrIDSpaceExhausted is returned when no free room id was drawn within the attempt bound.
	ErrIDSpaceExhausted = errors.New("room id attempts exhausted")
)

// Player is one client's record inside a room.
type Player struct {
	ClientID        string
	Nickname        string
	Errors          int
	CurrentQuestion int
	// Detached is set once the client's connection is gone; the record is kept.
	Detached bool
}

// Snapshot is a consistent copy of a room's state.
//
// Questions is shared with the room and must be treated as read-only.
type Snapshot struct {
	ID        string
	OwnerID   string
	Status    Status
	Players   []Player
	Questions []question.Question
}

// Player returns the record for clientID.
//
// Postcondition: Returns (player, true) if clientID joined, or (zero, false) otherwise.
func (s Snapshot) Player(clientID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ClientID == clientID {
			return p, true
		}
	}
	return Player{}, false
}

// Room holds the mutable state of a single quiz session.
// All access goes through Registry, which takes mu.
type Room struct {
	mu        sync.Mutex
	id        string
	ownerID   string
	status    Status
	order     []string
	players   map[string]*Player
	questions []question.Question
}

func newRoom(id, ownerID string, questions []question.Question) *Room {
	return &Room{
		id:        id,
		ownerID:   ownerID,
		status:    StatusWaiting,
		players:   make(map[string]*Player),
		questions: questions,
	}
}

// snapshot copies the room. Caller must hold r.mu.
func (r *Room) snapshot() Snapshot {
	players := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, *r.players[id])
	}
	return Snapshot{
		ID:        r.id,
		OwnerID:   r.ownerID,
		Status:    r.status,
		Players:   players,
		Questions: r.questions,
	}
}
