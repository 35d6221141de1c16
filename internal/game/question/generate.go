package question

import (
	"fmt"

	"github.com/cory-johannsen/mathrace/internal/game/rng"
)

type drawFunc func(src rng.Source, min, max int) Question

// Generate builds a batch of p.Count questions for p.Level.
//
// The first ceil(Count/2) questions use the level's first operator and the remainder
// use its second. Levels other than LevelEasy and LevelMedium yield an empty batch.
//
// Precondition: src must be non-nil.
// Postcondition: On success the batch has exactly p.Count questions (or none for an
// unsupported level) and no two share a Signature.
func Generate(src rng.Source, p Params) ([]Question, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var first, second drawFunc
	switch p.Level {
	case LevelEasy:
		first, second = drawAddition, drawSubtraction
	case LevelMedium:
		first, second = drawMultiplication, drawDivision
	default:
		return []Question{}, nil
	}

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	half := (p.Count + 1) / 2
	seen := make(map[Signature]struct{}, p.Count)
	batch := make([]Question, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		draw := first
		if i >= half {
			draw = second
		}
		q, err := drawUnique(src, draw, p.Min, p.Max, attempts, seen)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		seen[q.Signature()] = struct{}{}
		batch = append(batch, q)
	}
	return batch, nil
}

func drawUnique(src rng.Source, draw drawFunc, min, max, attempts int, seen map[Signature]struct{}) (Question, error) {
	var q Question
	for n := 0; n < attempts; n++ {
		q = draw(src, min, max)
		if _, dup := seen[q.Signature()]; !dup {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%w: no unused %q question after %d draws", ErrAttemptsExhausted, q.Operation, attempts)
}

func drawAddition(src rng.Source, min, max int) Question {
	a, b := rng.IntRange(src, min, max), rng.IntRange(src, min, max)
	return Question{First: a, Second: b, Operation: OpAdd, Answer: a + b}
}

// drawSubtraction swaps operands so the answer is never negative.
func drawSubtraction(src rng.Source, min, max int) Question {
	a, b := rng.IntRange(src, min, max), rng.IntRange(src, min, max)
	if a < b {
		a, b = b, a
	}
	return Question{First: a, Second: b, Operation: OpSub, Answer: a - b}
}

func drawMultiplication(src rng.Source, min, max int) Question {
	a, b := rng.IntRange(src, min, max), rng.IntRange(src, min, max)
	return Question{First: a, Second: b, Operation: OpMul, Answer: a * b}
}

// drawDivision builds the dividend as a product so the quotient is exact.
func drawDivision(src rng.Source, min, max int) Question {
	a, b := rng.IntRange(src, min, max), rng.IntRange(src, min, max)
	return Question{First: a * b, Second: b, Operation: OpDiv, Answer: a}
}
