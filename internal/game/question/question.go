// Package question generates batches of arithmetic questions for a quiz round.
package question

import (
	"errors"
	"fmt"
)

// Operator is one of the four arithmetic operations.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
	OpDiv Operator = "/"
)

// Level selects which pair of operators a batch uses.
type Level int

const (
	// LevelCustom is reserved for caller-chosen operators and currently yields an empty batch.
	LevelCustom Level = 0
	// LevelEasy yields additions then subtractions.
	LevelEasy Level = 1
	// LevelMedium yields multiplications then divisions.
	LevelMedium Level = 2
)

var (
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("invalid question parameters")
	// ErrAttemptsExhausted is returned when no unused signature was drawn within MaxAttempts.
	ErrAttemptsExhausted = errors.New("question attempts exhausted")
)

// Question is a single arithmetic problem with its answer.
//
// Invariant: for OpSub, First >= Second; for OpDiv, First%Second == 0 and Answer == First/Second.
type Question struct {
	First     int      `json:"first"`
	Second    int      `json:"second"`
	Operation Operator `json:"operation"`
	Answer    int      `json:"answer"`
}

// Signature identifies a question within a batch for deduplication.
type Signature struct {
	First     int
	Operation Operator
	Second    int
}

// Signature returns the (first, operator, second) triple of q.
func (q Question) Signature() Signature {
	return Signature{First: q.First, Operation: q.Operation, Second: q.Second}
}

// String renders q as "7 - 3".
func (q Question) String() string {
	return fmt.Sprintf("%d %s %d", q.First, q.Operation, q.Second)
}

// Params controls batch generation.
type Params struct {
	Level Level
	Count int
	// Min and Max bound every drawn operand to [Min, Max).
	Min int
	Max int
	// MaxAttempts bounds redraws for a single question; <= 0 selects DefaultMaxAttempts.
	MaxAttempts int
}

// DefaultMaxAttempts is the redraw bound used when Params.MaxAttempts is unset.
const DefaultMaxAttempts = 1000

// MaxOperand bounds operand magnitudes so products and range widths fit in an int.
const MaxOperand = 1 << 30

// DefaultParams returns level 1, ten questions, operands in [2, 10).
func DefaultParams() Params {
	return Params{Level: LevelEasy, Count: 10, Min: 2, Max: 10, MaxAttempts: DefaultMaxAttempts}
}

// Validate checks the operand range and count.
//
// Precondition: int is 64 bits wide.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidParams.
func (p Params) Validate() error {
	if p.Count < 0 {
		return fmt.Errorf("%w: count must be >= 0, got %d", ErrInvalidParams, p.Count)
	}
	if p.Min >= p.Max {
		return fmt.Errorf("%w: min (%d) must be < max (%d)", ErrInvalidParams, p.Min, p.Max)
	}
	if p.Min < -MaxOperand || p.Max > MaxOperand {
		return fmt.Errorf("%w: operands must lie within [%d, %d], got [%d, %d)", ErrInvalidParams, -MaxOperand, MaxOperand, p.Min, p.Max)
	}
	if p.Level == LevelMedium && p.Min < 1 {
		return fmt.Errorf("%w: division needs a positive divisor, min must be >= 1, got %d", ErrInvalidParams, p.Min)
	}
	return nil
}
