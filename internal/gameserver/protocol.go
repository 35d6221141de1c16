package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/mathrace/internal/game/question"
	"github.com/cory-johannsen/mathrace/internal/game/room"
)

// Method is the wire discriminator of every message.
type Method string

const (
	MethodConnect Method = "connect"
	MethodCreate  Method = "create"
	MethodJoin    Method = "join"
	MethodStart   Method = "start"
	MethodPlay    Method = "play"
	MethodFinish  Method = "finish"
	MethodUpdate  Method = "update"
	MethodError   Method = "error"
)

var (
	// ErrMalformedMessage is returned for payloads that are not a valid request.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMethod is returned for requests with an unsupported method.
	ErrUnknownMethod = errors.New("unknown method")
)

// Request is an inbound client message. Fields not used by Method are ignored.
type Request struct {
	Method   Method `json:"method"`
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname"`
	GameID   string `json:"gameId"`
	IsError  *bool  `json:"isError"`
}

// DecodeRequest parses data and checks the fields its method requires.
//
// Postcondition: Returns a Request with all required fields set, or an error wrapping
// ErrMalformedMessage or ErrUnknownMethod.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	switch req.Method {
	case MethodCreate:
		need(req.ClientID != "", "clientId")
	case MethodJoin:
		need(req.ClientID != "", "clientId")
		need(req.GameID != "", "gameId")
	case MethodStart, MethodFinish:
		need(req.GameID != "", "gameId")
	case MethodPlay:
		need(req.GameID != "", "gameId")
		need(req.ClientID != "", "clientId")
		need(req.IsError != nil, "isError")
	case "":
		return Request{}, fmt.Errorf("%w: missing method", ErrMalformedMessage)
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
	if len(missing) > 0 {
		return Request{}, fmt.Errorf("%w: %s requires %v", ErrMalformedMessage, req.Method, missing)
	}
	return req, nil
}

type memberView struct {
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname"`
}

type stateView struct {
	Errors          int    `json:"errors"`
	CurrentQuestion int    `json:"currentQuestion"`
	Nickname        string `json:"nickname"`
	Detached        bool   `json:"detached,omitempty"`
}

type gameView struct {
	ID        string               `json:"id"`
	Status    room.Status          `json:"status"`
	OwnerID   string               `json:"ownerId"`
	Clients   []memberView         `json:"clients"`
	State     map[string]stateView `json:"state"`
	Questions []question.Question  `json:"questions"`
}

type connectMessage struct {
	Method   Method `json:"method"`
	ClientID string `json:"clientId"`
}

type gameMessage struct {
	Method Method   `json:"method"`
	Game   gameView `json:"game"`
}

type updateMessage struct {
	Method  Method               `json:"method"`
	GameID  string               `json:"gameId"`
	OwnerID string               `json:"ownerId"`
	Status  room.Status          `json:"status"`
	Players []memberView         `json:"players"`
	State   map[string]stateView `json:"state"`
}

type errorMessage struct {
	Method  Method `json:"method"`
	Request Method `json:"request,omitempty"`
	Error   string `json:"error"`
}

func roster(snap room.Snapshot) ([]memberView, map[string]stateView) {
	members := make([]memberView, 0, len(snap.Players))
	state := make(map[string]stateView, len(snap.Players))
	for _, p := range snap.Players {
		members = append(members, memberView{ClientID: p.ClientID, Nickname: p.Nickname})
		state[p.ClientID] = stateView{
			Errors:          p.Errors,
			CurrentQuestion: p.CurrentQuestion,
			Nickname:        p.Nickname,
			Detached:        p.Detached,
		}
	}
	return members, state
}

func encodeConnect(clientID string) ([]byte, error) {
	return json.Marshal(connectMessage{Method: MethodConnect, ClientID: clientID})
}

func encodeGame(method Method, snap room.Snapshot) ([]byte, error) {
	members, state := roster(snap)
	questions := snap.Questions
	if questions == nil {
		questions = []question.Question{}
	}
	return json.Marshal(gameMessage{
		Method: method,
		Game: gameView{
			ID:        snap.ID,
			Status:    snap.Status,
			OwnerID:   snap.OwnerID,
			Clients:   members,
			State:     state,
			Questions: questions,
		},
	})
}

func encodeUpdate(snap room.Snapshot) ([]byte, error) {
	members, state := roster(snap)
	return json.Marshal(updateMessage{
		Method:  MethodUpdate,
		GameID:  snap.ID,
		OwnerID: snap.OwnerID,
		Status:  snap.Status,
		Players: members,
		State:   state,
	})
}

func encodeError(request Method, err error) ([]byte, error) {
	return json.Marshal(errorMessage{Method: MethodError, Request: request, Error: err.Error()})
}
