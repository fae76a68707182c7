package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"trustline-client-go/internal/events"
)

// FileStore persists the credential set as a JSON file with fixed keys
// (access_token, refresh_token, expires_at). Read failures yield an empty
// set and write failures are logged and swallowed, so a missing or
// read-only token file never breaks the pipeline.
type FileStore struct {
	mu     sync.Mutex
	path   string
	tokens TokenSet
	bus    events.Publisher
	now    func() time.Time
}

// NewFileStore loads any existing token file at path. bus may be nil.
func NewFileStore(path string, bus events.Publisher) *FileStore {
	s := &FileStore{path: path, bus: bus, now: time.Now}
	s.load()
	return s
}

// WithNowFunc overrides the clock used to compute expiry instants (testing).
func (s *FileStore) WithNowFunc(now func() time.Time) *FileStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", s.path).Warn("failed to read token file")
		}
		return
	}
	var tokens TokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		log.WithError(err).WithField("path", s.path).Warn("token file is corrupt, starting empty")
		return
	}
	s.tokens = tokens
}

func (s *FileStore) save() {
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		log.WithError(err).Warn("failed to marshal token set")
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			log.WithError(err).WithField("path", s.path).Warn("failed to create token directory")
			return
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		log.WithError(err).WithField("path", s.path).Warn("failed to write token file")
	}
}

func (s *FileStore) Get() TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *FileStore) SetAccess(token string, expiresIn time.Duration) {
	s.mu.Lock()
	s.tokens.AccessToken = token
	s.tokens.ExpiresAt = s.now().Add(expiresIn)
	s.save()
	s.mu.Unlock()
	publishChanged(s.bus)
}

func (s *FileStore) SetRefresh(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.tokens.RefreshToken = token
	s.save()
	s.mu.Unlock()
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	wasEmpty := s.tokens.Empty()
	s.tokens = TokenSet{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", s.path).Warn("failed to remove token file")
	}
	s.mu.Unlock()
	if !wasEmpty {
		publishChanged(s.bus)
	}
}
