package session

import (
	"context"
	"sync"
	"time"

	"trustline-client-go/internal/events"
)

// MemoryStore keeps the credential set in process memory. It backs tests and
// doubles as the degraded mode when no persistence is configured.
type MemoryStore struct {
	mu     sync.Mutex
	tokens TokenSet
	bus    events.Publisher
	now    func() time.Time
}

// NewMemoryStore constructs an empty in-memory store. bus may be nil.
func NewMemoryStore(bus events.Publisher) *MemoryStore {
	return &MemoryStore{bus: bus, now: time.Now}
}

// WithNowFunc overrides the clock used to compute expiry instants (testing).
func (s *MemoryStore) WithNowFunc(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Get() TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *MemoryStore) SetAccess(token string, expiresIn time.Duration) {
	s.mu.Lock()
	s.tokens.AccessToken = token
	s.tokens.ExpiresAt = s.now().Add(expiresIn)
	s.mu.Unlock()
	publishChanged(s.bus)
}

func (s *MemoryStore) SetRefresh(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.tokens.RefreshToken = token
	s.mu.Unlock()
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	wasEmpty := s.tokens.Empty()
	s.tokens = TokenSet{}
	s.mu.Unlock()
	if !wasEmpty {
		publishChanged(s.bus)
	}
}

// publishChanged fires the session-changed signal. The signal carries no
// payload and subscribers run inline; callers never wait on it.
func publishChanged(bus events.Publisher) {
	if bus == nil {
		return
	}
	bus.Publish(context.Background(), events.TopicSessionChanged, nil, nil)
}
