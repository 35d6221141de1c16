package room

import (
	"errors"
	"fmt"
)

// Op names a state transition subject to the ownership policy.
type Op string

const (
	OpStart  Op = "start"
	OpFinish Op = "finish"
)

// ErrNotOwner is returned by OwnerOnly when the caller does not own the room.
var ErrNotOwner = errors.New("caller is not the room owner")

// Policy decides whether callerID may apply op to a room owned by ownerID.
// A nil return allows the transition.
type Policy func(op Op, ownerID, callerID string) error

// AllowAll trusts every caller.
func AllowAll(Op, string, string) error { return nil }

// OwnerOnly restricts every transition to the room owner.
func OwnerOnly(op Op, ownerID, callerID string) error {
	if callerID != ownerID {
		return fmt.Errorf("%w: %s by %q", ErrNotOwner, op, callerID)
	}
	return nil
}
