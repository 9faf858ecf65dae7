package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilMessage     = errors.New("message is nil")
)

// Store is the conversation contract used by the orchestrator.
type Store interface {
	// EnsureInitialized reports whether the system prompt still has to be sent and marks it sent.
	EnsureInitialized(sessionID string) (bool, error)
	Append(sessionID string, msgs ...*schema.Message) error
	History(sessionID string) ([]*schema.Message, error)
	// Lock serializes turns of one session. The returned func releases it.
	Lock(ctx context.Context, sessionID string) (func(), error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps every session for the lifetime of the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session, 16),
	}
}

func (s *MemoryStore) EnsureInitialized(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	if sess.Initialized {
		return false, nil
	}
	sess.Initialized = true
	return true, nil
}

func (s *MemoryStore) Append(sessionID string, msgs ...*schema.Message) error {
	for i, msg := range msgs {
		if msg == nil {
			return fmt.Errorf("%w: index=%d", ErrNilMessage, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msgs...)
	return nil
}

// History returns a copy of the slice; the messages themselves are shared and must not be mutated.
func (s *MemoryStore) History(sessionID string) ([]*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

func (s *MemoryStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	sess, err := s.session(sessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case sess.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sess.turn })
	}, nil
}

// caller must hold s.mu
func (s *MemoryStore) session(sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = newSession(sessionID)
		s.sessions[sessionID] = sess
	}
	return sess, nil
}
