// Package transcript persists the ordered conversation between the user and the bot.
package transcript

import (
	"errors"
	"fmt"
	"time"
)

// Role tags the speaker of a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Valid reports whether r is one of the two known speaker tags.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleBot
}

var (
	ErrEmptyMessage = errors.New("transcript: turn message is empty")
	ErrInvalidRole  = errors.New("transcript: invalid turn role")
)

// Turn is one message in the conversation. Turns are never mutated after creation.
type Turn struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	// IsWelcome marks display-only greeting turns.
	IsWelcome bool `json:"isWelcome,omitempty"`
}

// NewTurn stamps a turn with the current time at millisecond precision.
func NewTurn(role Role, message string) Turn {
	return Turn{
		Role:      role,
		Message:   message,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Validate checks the invariants required for a persisted turn.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, t.Role)
	}
	if t.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}
