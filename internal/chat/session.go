package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suPer8Hu/kb-chat/internal/common"
)

var ErrSessionNotFound = errors.New("chat: session not found")

type Session struct {
	SessionID string    `json:"session_id"`
	UserID    uint64    `json:"-"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`

	Conversation *Conversation `json:"-"`
}

func NewSessionID() (string, error) {
	return common.NewULID()
}

// Sessions keeps conversations in memory for the life of the process.
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session)}
}

func (s *Sessions) Create(_ context.Context, userID uint64, provider string) (*Session, error) {
	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		SessionID:    sid,
		UserID:       userID,
		Provider:     provider,
		CreatedAt:    time.Now(),
		Conversation: &Conversation{},
	}
	s.mu.Lock()
	s.byID[sid] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the session only to its owner; anyone else gets
// ErrSessionNotFound.
func (s *Sessions) Get(_ context.Context, userID uint64, sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.byID[sessionID]
	s.mu.RUnlock()
	if !ok || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Sessions) Delete(ctx context.Context, userID uint64, sessionID string) error {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.byID, sessionID)
	s.mu.Unlock()
	return nil
}
