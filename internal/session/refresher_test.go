package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newRefreshServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != refreshPath {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func okRefreshHandler(access, refresh string, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"access_token": access,
			"expires_in":   3600,
		}
		if refresh != "" {
			resp["refresh_token"] = refresh
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	server, calls := newRefreshServer(t, okRefreshHandler("fresh", "next-r", 100*time.Millisecond))

	store := NewMemoryStore(nil)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	oks := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = r.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("refresh network calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if !oks[i] || results[i] != "fresh" {
			t.Fatalf("caller %d got (%q, %v), want (fresh, true)", i, results[i], oks[i])
		}
	}
	if got := store.Get().RefreshToken; got != "next-r" {
		t.Fatalf("rotated refresh token = %q, want next-r", got)
	}
}

func TestRefreshSettlesMarkerSoLaterCallsStartFresh(t *testing.T) {
	server, calls := newRefreshServer(t, okRefreshHandler("fresh", "", 0))

	store := NewMemoryStore(nil)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	if _, ok := r.Refresh(context.Background()); !ok {
		t.Fatal("first refresh failed")
	}
	if _, ok := r.Refresh(context.Background()); !ok {
		t.Fatal("second refresh failed")
	}
	if got := atomic.LoadInt64(calls); got != 2 {
		t.Fatalf("refresh network calls = %d, want 2", got)
	}
}

func TestRefreshKeepsOldRefreshTokenWhenResponseOmitsIt(t *testing.T) {
	server, _ := newRefreshServer(t, okRefreshHandler("fresh", "", 0))

	store := NewMemoryStore(nil)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	if _, ok := r.Refresh(context.Background()); !ok {
		t.Fatal("refresh failed")
	}
	if got := store.Get().RefreshToken; got != "r1" {
		t.Fatalf("refresh token = %q, want r1 preserved", got)
	}
}

func TestRefreshProceedsWithoutStoredRefreshToken(t *testing.T) {
	// Cookie-based refresh flows have no stored token; the exchange must
	// still be attempted.
	var sawBody string
	server, calls := newRefreshServer(t, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		sawBody = string(buf[:n])
		okRefreshHandler("fresh", "", 0)(w, r)
	})

	store := NewMemoryStore(nil)
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	token, ok := r.Refresh(context.Background())
	if !ok || token != "fresh" {
		t.Fatalf("refresh = (%q, %v), want (fresh, true)", token, ok)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("refresh network calls = %d, want 1", got)
	}
	if sawBody != "{}" {
		t.Fatalf("refresh body = %q, want {} with refresh_token omitted", sawBody)
	}
}

func TestRefreshNetworkFailureLeavesStoreUntouched(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	store := NewMemoryStore(nil)
	store.SetAccess("stale", time.Minute)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	token, ok := r.Refresh(context.Background())
	if ok || token != "" {
		t.Fatalf("refresh = (%q, %v), want empty failure", token, ok)
	}
	tokens := store.Get()
	if tokens.AccessToken != "stale" || tokens.RefreshToken != "r1" {
		t.Fatalf("store mutated on transient failure: %+v", tokens)
	}
}

func TestRefreshGeneric401DoesNotClearStore(t *testing.T) {
	server, _ := newRefreshServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"INVALID_GRANT","message":"nope"}`))
	})

	store := NewMemoryStore(nil)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	if _, ok := r.Refresh(context.Background()); ok {
		t.Fatal("refresh should have failed")
	}
	if got := store.Get().RefreshToken; got != "r1" {
		t.Fatalf("refresh token = %q, want r1 untouched", got)
	}
}

func TestRefreshLockoutTearsDownSessionOnce(t *testing.T) {
	server, _ := newRefreshServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"ACCOUNT_LOCKED","message":"locked"}`))
	})

	bus := &recordingBus{}
	var terminations int64
	store := NewMemoryStore(bus)
	store.SetAccess("tok", time.Hour)
	store.SetRefresh("r1")
	r := NewRefresher(store, bus, server.URL,
		WithLimiter(nil),
		WithTerminatedCallback(func(string) { atomic.AddInt64(&terminations, 1) }),
	)

	if _, ok := r.Refresh(context.Background()); ok {
		t.Fatal("lockout refresh should fail")
	}
	// A second lockout against the now-empty store must not re-fire.
	if _, ok := r.Refresh(context.Background()); ok {
		t.Fatal("second lockout refresh should fail")
	}

	if !store.Get().Empty() {
		t.Fatal("store not cleared after lockout")
	}
	if got := bus.count("session.terminated"); got != 1 {
		t.Fatalf("terminated events = %d, want 1", got)
	}
	if got := atomic.LoadInt64(&terminations); got != 1 {
		t.Fatalf("terminated callbacks = %d, want 1", got)
	}
}

func TestRefreshMalformedResponseFailsSoftly(t *testing.T) {
	server, _ := newRefreshServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":""}`))
	})

	store := NewMemoryStore(nil)
	store.SetRefresh("r1")
	r := NewRefresher(store, nil, server.URL, WithLimiter(nil))

	if _, ok := r.Refresh(context.Background()); ok {
		t.Fatal("malformed response must not count as success")
	}
	if got := store.Get().RefreshToken; got != "r1" {
		t.Fatalf("refresh token = %q, want r1 untouched", got)
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	bus := &recordingBus{}
	store := NewMemoryStore(bus)
	store.SetAccess("tok", time.Hour)
	r := NewRefresher(store, bus, "http://unused", WithLimiter(nil))

	r.Teardown("logout")
	r.Teardown("logout")

	if got := bus.count("session.terminated"); got != 1 {
		t.Fatalf("terminated events = %d, want 1", got)
	}
}
