package gameserver

import (
	"github.com/cory-johannsen/mathrace/internal/config"
	"github.com/cory-johannsen/mathrace/internal/game/question"
	"github.com/cory-johannsen/mathrace/internal/game/room"
)

// RoomConfig maps the game configuration onto registry limits and question parameters.
func RoomConfig(g config.GameConfig) room.Config {
	return room.Config{
		MaxPlayers:    g.MaxPlayers,
		MaxIDAttempts: g.MaxIDAttempts,
		Questions: question.Params{
			Level:       question.Level(g.QuestionLevel),
			Count:       g.QuestionCount,
			Min:         g.OperandMin,
			Max:         g.OperandMax,
			MaxAttempts: g.MaxQuestionAttempts,
		},
	}
}

// OwnershipPolicy returns room.OwnerOnly when owner enforcement is on, otherwise room.AllowAll.
func OwnershipPolicy(g config.GameConfig) room.Policy {
	if g.EnforceOwner {
		return room.OwnerOnly
	}
	return room.AllowAll
}

// Options maps the game configuration onto HandlerOptions.
func Options(g config.GameConfig) HandlerOptions {
	return HandlerOptions{ReplyErrors: g.ReplyErrors}
}
