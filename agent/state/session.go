package state

import (
	"github.com/cloudwego/eino/schema"
)

// Session is the conversation of one caller: ordered history plus the one-shot
// flag recording that the system prompt was injected.
type Session struct {
	ID          string
	Initialized bool
	Messages    []*schema.Message

	// turn is a one-slot semaphore; holding it means a turn is running.
	turn chan struct{}
}

func newSession(sessionID string) *Session {
	return &Session{
		ID:       sessionID,
		Messages: make([]*schema.Message, 0, 16),
		turn:     make(chan struct{}, 1),
	}
}

func (s *Session) snapshot() []*schema.Message {
	out := make([]*schema.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
