// Package transcript defines the uniform chat history shared by the assistant
// loop and every response provider.
//
// A Transcript is owned by exactly one caller (the turn loop). Providers only
// ever see copies obtained from [Transcript.Turns], so provider-specific
// reshaping can never leak back into the caller's history.
package transcript

import (
	"fmt"
	"sync"
)

// Role identifies the author of a [Turn].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the recognised roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single message in a chat transcript. Turns are values and are
// never modified after creation.
type Turn struct {
	Role    Role
	Content string
}

// System returns a system-role turn.
func System(content string) Turn { return Turn{Role: RoleSystem, Content: content} }

// User returns a user-role turn.
func User(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// Assistant returns an assistant-role turn.
func Assistant(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Transcript is an append-only, chronologically ordered list of turns.
// It is safe for concurrent use.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// New returns a Transcript seeded with the given turns.
func New(seed ...Turn) *Transcript {
	t := &Transcript{turns: make([]Turn, 0, len(seed)+8)}
	t.turns = append(t.turns, seed...)
	return t
}

// Append adds turn to the end of the transcript. It returns an error if the
// turn carries an unknown role.
func (t *Transcript) Append(turn Turn) error {
	if !turn.Role.IsValid() {
		return fmt.Errorf("transcript: invalid role %q", turn.Role)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
	return nil
}

// Turns returns a copy of all turns in insertion order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}
