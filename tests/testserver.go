package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeBackend simulates the three platform origins: the auth origin issuing
// and refreshing tokens, the primary API, and the feature host. Both API
// origins accept only the token the auth origin currently considers valid.
type fakeBackend struct {
	mu           sync.Mutex
	validToken   string
	refreshToken string
	tokenSerial  int
	refreshCalls int
	locked       bool
	transferKeys []string
	refreshDelay time.Duration

	Auth    *httptest.Server
	API     *httptest.Server
	Feature *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}

	authMux := http.NewServeMux()
	authMux.HandleFunc("/auth/login", b.handleLogin)
	authMux.HandleFunc("/auth/refresh", b.handleRefresh)
	b.Auth = httptest.NewServer(authMux)
	t.Cleanup(b.Auth.Close)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/wallet/balance", b.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"available": "120.50", "locked": "10.00", "currency": "EUR"})
	}))
	apiMux.HandleFunc("/wallet/transfer", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.transferKeys = append(b.transferKeys, r.Header.Get("X-Idempotency-Key"))
		b.mu.Unlock()
		b.protected(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"id": "tr-1", "status": "pending"})
		})(w, r)
	})
	apiMux.HandleFunc("/cases", b.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"cases": []map[string]string{{"id": "c-1", "status": "open"}}})
	}))
	b.API = httptest.NewServer(apiMux)
	t.Cleanup(b.API.Close)

	featureMux := http.NewServeMux()
	featureMux.HandleFunc("/passkeys", b.protected(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"passkeys": []any{}})
	}))
	b.Feature = httptest.NewServer(featureMux)
	t.Cleanup(b.Feature.Close)

	return b
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds.Email != "user@example.com" || creds.Password != "hunter2" {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"code": "INVALID_CREDENTIALS", "message": "bad login"})
		return
	}
	b.mu.Lock()
	b.tokenSerial++
	b.validToken = token("access", b.tokenSerial)
	b.refreshToken = token("refresh", b.tokenSerial)
	access, refresh := b.validToken, b.refreshToken
	b.mu.Unlock()
	writeJSON(w, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    3600,
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delay := b.refreshDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	b.refreshCalls++
	if b.locked {
		b.mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, map[string]string{"code": "ACCOUNT_LOCKED", "message": "account locked"})
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken != b.refreshToken || b.refreshToken == "" {
		b.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"code": "INVALID_GRANT", "message": "unknown refresh token"})
		return
	}
	b.tokenSerial++
	b.validToken = token("access", b.tokenSerial)
	b.refreshToken = token("refresh", b.tokenSerial)
	access, refresh := b.validToken, b.refreshToken
	b.mu.Unlock()
	writeJSON(w, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    3600,
	})
}

// protected enforces the bearer check shared by both API origins.
func (b *fakeBackend) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := b.validToken
		b.mu.Unlock()
		if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"code": "TOKEN_EXPIRED", "message": "token not accepted"})
			return
		}
		next(w, r)
	}
}

// invalidateAccess simulates server-side revocation of the current access
// token while the refresh token stays good.
func (b *fakeBackend) invalidateAccess() {
	b.mu.Lock()
	b.validToken = "revoked-" + b.validToken
	b.mu.Unlock()
}

func (b *fakeBackend) lock() {
	b.mu.Lock()
	b.locked = true
	b.mu.Unlock()
}

func (b *fakeBackend) transferIdempotencyKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.transferKeys))
	copy(out, b.transferKeys)
	return out
}

func (b *fakeBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func token(kind string, serial int) string {
	return kind + "-" + strconv.Itoa(serial)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
