package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Turn is one completed exchange entry in a call's conversation history
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Failed    bool      `json:"failed,omitempty"` // assistant turn ended in the apology path
}

// Session holds the live state of one call
type Session struct {
	CallSID        string
	StreamSID      string
	From           string
	Direction      string
	CustomerID     string
	CustomerName   string
	ConversationID string
	Turns          []Turn
	CreatedAt      time.Time

	mu sync.Mutex
}

// AppendTurn adds an entry to the conversation history
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
}

// History returns a copy of the last n conversation turns
func (s *Session) History(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(s.Turns) > n {
		start = len(s.Turns) - n
	}
	out := make([]Turn, len(s.Turns)-start)
	copy(out, s.Turns[start:])
	return out
}

// Registry is a concurrency-safe map of active call sessions keyed by
// call SID. It is injected into every component that needs call state;
// there is no package-level instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a session for the call SID. If one already exists
// (status callback raced the media stream) the existing session is
// returned unchanged.
func (r *Registry) Create(callSID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[callSID]; ok {
		return existing
	}

	sess := &Session{
		CallSID:   callSID,
		CreatedAt: time.Now(),
	}
	r.sessions[callSID] = sess
	return sess
}

// Get returns the session for a call SID, or nil if unknown
func (r *Registry) Get(callSID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callSID]
}

// Remove evicts a session and reports whether one was present. Safe to
// call more than once; repeated removals for the same call SID are
// no-ops that return false.
func (r *Registry) Remove(callSID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[callSID]; !ok {
		r.logger.Debug("Session already removed", zap.String("call_sid", callSID))
		return false
	}
	delete(r.sessions, callSID)
	return true
}

// Count returns the number of active sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
