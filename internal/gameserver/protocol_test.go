package gameserver_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/mathrace/internal/gameserver"
)

func TestDecodeRequest_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want gameserver.Request
	}{
		{"create", `{"method":"create","clientId":"c1"}`, gameserver.Request{Method: gameserver.MethodCreate, ClientID: "c1"}},
		{"join", `{"method":"join","clientId":"c1","nickname":"Ann","gameId":"AbCdEf"}`,
			gameserver.Request{Method: gameserver.MethodJoin, ClientID: "c1", Nickname: "Ann", GameID: "AbCdEf"}},
		{"join without nickname", `{"method":"join","clientId":"c1","gameId":"AbCdEf"}`,
			gameserver.Request{Method: gameserver.MethodJoin, ClientID: "c1", GameID: "AbCdEf"}},
		{"start", `{"method":"start","gameId":"AbCdEf"}`, gameserver.Request{Method: gameserver.MethodStart, GameID: "AbCdEf"}},
		{"finish", `{"method":"finish","gameId":"AbCdEf","extra":1}`, gameserver.Request{Method: gameserver.MethodFinish, GameID: "AbCdEf"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := gameserver.DecodeRequest([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeRequest_PlayFalseIsPresent(t *testing.T) {
	got, err := gameserver.DecodeRequest([]byte(`{"method":"play","gameId":"g","clientId":"c","isError":false}`))
	require.NoError(t, err)
	require.NotNil(t, got.IsError)
	assert.False(t, *got.IsError)
}

func TestDecodeRequest_Rejected(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `create`, gameserver.ErrMalformedMessage},
		{"truncated", `{"method":"create"`, gameserver.ErrMalformedMessage},
		{"empty method", `{"clientId":"c"}`, gameserver.ErrMalformedMessage},
		{"wrong type", `{"method":"play","gameId":"g","clientId":"c","isError":"yes"}`, gameserver.ErrMalformedMessage},
		{"create without client", `{"method":"create"}`, gameserver.ErrMalformedMessage},
		{"join without game", `{"method":"join","clientId":"c"}`, gameserver.ErrMalformedMessage},
		{"start without game", `{"method":"start"}`, gameserver.ErrMalformedMessage},
		{"play without isError", `{"method":"play","gameId":"g","clientId":"c"}`, gameserver.ErrMalformedMessage},
		{"unknown", `{"method":"leave","gameId":"g"}`, gameserver.ErrUnknownMethod},
		{"server-only method", `{"method":"update"}`, gameserver.ErrUnknownMethod},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gameserver.DecodeRequest([]byte(tc.raw))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPropertyDecodeRequestNeverPanics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(rt, "data")
		_, _ = gameserver.DecodeRequest(data)
	})
}

func TestPropertyDecodeRequestRoundTripsPlay(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		gameID := rapid.StringMatching(`[A-Za-z]{6}`).Draw(rt, "game_id")
		clientID := rapid.StringMatching(`[a-z0-9-]{1,36}`).Draw(rt, "client_id")
		isError := rapid.Bool().Draw(rt, "is_error")
		data, err := json.Marshal(map[string]any{"method": "play", "gameId": gameID, "clientId": clientID, "isError": isError})
		if err != nil {
			rt.Fatal(err)
		}
		req, err := gameserver.DecodeRequest(data)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if req.GameID != gameID || req.ClientID != clientID || req.IsError == nil || *req.IsError != isError {
			rt.Fatalf("round trip mismatch: %+v", req)
		}
	})
}

func TestErrorKind_Internal(t *testing.T) {
	assert.Equal(t, "internal", gameserver.ErrorKind(assert.AnError))
}
