package session

import (
	"sync"
	"time"
)

// Store keeps per-session chat histories. Implementations must be safe for
// concurrent use; all returned sessions and slices are copies, so callers
// can never mutate stored history through them.
type Store interface {
	// GetOrCreate returns the session for id, creating an empty one if this
	// is the first time the id is seen.
	GetOrCreate(id string) Session
	// Append adds a turn at the end of the session's history, creating the
	// session first when needed.
	Append(id string, turn Turn)
	// History returns the session's turns in append order. Unknown ids
	// yield an empty slice.
	History(id string) []Turn
	// Clear discards the session's turns. The session itself survives.
	Clear(id string)
	// Len reports how many turns the session holds.
	Len(id string) int
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns a Store backed by a process-local map.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]*Session)}
}

// getLocked fetches or creates the session for id. Caller holds mu.
func (s *memoryStore) getLocked(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, StartTime: time.Now(), Turns: []Turn{}}
		s.sessions[id] = sess
	}
	return sess
}

func (s *memoryStore) GetOrCreate(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.getLocked(id))
}

func (s *memoryStore) Append(id string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getLocked(id)
	sess.Turns = append(sess.Turns, turn)
}

func (s *memoryStore) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return []Turn{}
	}
	turns := make([]Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns
}

func (s *memoryStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Turns = []Turn{}
	}
}

func (s *memoryStore) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0
	}
	return len(sess.Turns)
}

// snapshot copies a session so callers cannot alias stored turns.
func snapshot(sess *Session) Session {
	turns := make([]Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	out := *sess
	out.Turns = turns
	return out
}
