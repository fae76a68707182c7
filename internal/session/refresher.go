package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"trustline-client-go/internal/apierr"
	"trustline-client-go/internal/constants"
	"trustline-client-go/internal/events"
)

const refreshPath = "/auth/refresh"

const maxRefreshBodySize = 1 << 20

// Refresher exchanges the stored refresh token for a fresh access token.
// It guarantees at most one refresh exchange is in flight process-wide:
// concurrent callers attach to the pending exchange and observe its result.
//
// Refresh never returns an error. Any non-success outcome other than a
// confirmed lockout resolves to ("", false) with the store untouched, because
// a transient refresh failure must not destroy a session that may still work.
type Refresher struct {
	store    Store
	bus      events.Publisher
	endpoint string

	httpClient   *http.Client
	timeout      time.Duration
	now          func() time.Time
	limiter      *rate.Limiter
	onTerminated func(reason string)

	mu       sync.Mutex
	inflight *flight
}

type flight struct {
	done  chan struct{}
	token string
	ok    bool
}

// RefresherOption customizes Refresher creation.
type RefresherOption func(*Refresher)

// WithHTTPClient overrides the HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) RefresherOption {
	return func(r *Refresher) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithNowFunc overrides the clock (testing).
func WithNowFunc(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRefreshTimeout bounds a single exchange.
func WithRefreshTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLimiter overrides the throttle guarding new exchanges. Pass nil to
// disable throttling entirely (tests).
func WithLimiter(l *rate.Limiter) RefresherOption {
	return func(r *Refresher) { r.limiter = l }
}

// WithTerminatedCallback wires the forced-logout side effect. The hosting
// application decides what "go to the authentication entry point" means and
// is responsible for not redirecting when it is already there.
func WithTerminatedCallback(fn func(reason string)) RefresherOption {
	return func(r *Refresher) { r.onTerminated = fn }
}

// NewRefresher constructs a Refresher posting to authBaseURL+"/auth/refresh".
func NewRefresher(store Store, bus events.Publisher, authBaseURL string, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:      store,
		bus:        bus,
		endpoint:   authBaseURL + refreshPath,
		httpClient: &http.Client{Timeout: constants.RefreshTimeout},
		timeout:    constants.RefreshTimeout,
		now:        time.Now,
		limiter:    rate.NewLimiter(constants.RefreshThrottleRate, constants.RefreshThrottleBurst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Refresh returns a fresh access token, coalescing concurrent callers onto a
// single network exchange. The boolean is false when no new token could be
// obtained; the caller decides whether the stored token is still worth
// sending.
func (r *Refresher) Refresh(ctx context.Context) (string, bool) {
	r.mu.Lock()
	if f := r.inflight; f != nil {
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", false
		case <-f.done:
			return f.token, f.ok
		}
	}
	f := &flight{done: make(chan struct{})}
	r.inflight = f
	r.mu.Unlock()

	f.token, f.ok = r.exchange()

	// The in-flight marker is cleared on settlement regardless of outcome so
	// a later call can start a fresh attempt.
	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(f.done)

	return f.token, f.ok
}

func (r *Refresher) exchange() (string, bool) {
	if r.limiter != nil && !r.limiter.Allow() {
		log.Debug("refresh throttled, treating as transient failure")
		return "", false
	}

	// The exchange runs in its own cancellation scope: aborting the request
	// that triggered it must not abort a refresh other callers share.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	// The refresh_token field is omitted when absent; the backend may accept
	// the exchange via an HTTP-only cookie instead.
	payload := struct {
		RefreshToken string `json:"refresh_token,omitempty"`
	}{RefreshToken: r.store.Get().RefreshToken}

	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Warn("failed to encode refresh request")
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("failed to build refresh request")
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("token refresh network call failed")
		return "", false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBodySize))
	if err != nil {
		log.WithError(err).Warn("failed to read refresh response")
		return "", false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code := gjson.GetBytes(respBody, "code").String()
		if apierr.IsLockoutCode(code) {
			log.WithField("code", code).Warn("refresh rejected with lockout, tearing down session")
			r.Teardown(code)
			return "", false
		}
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"code":   code,
		}).Warn("token refresh rejected, keeping stored credentials")
		return "", false
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		log.WithError(err).Warn("malformed refresh response")
		return "", false
	}
	if tokenResp.AccessToken == "" || tokenResp.ExpiresIn <= 0 {
		log.Warn("refresh response missing access token or expiry")
		return "", false
	}

	r.store.SetAccess(tokenResp.AccessToken, time.Duration(tokenResp.ExpiresIn)*time.Second)
	// Only overwrite the refresh token when the backend rotated it.
	r.store.SetRefresh(tokenResp.RefreshToken)

	log.Debug("access token refreshed")
	return tokenResp.AccessToken, true
}

// Teardown destroys the session: the store is cleared, the terminated signal
// fires, and the forced-logout callback runs. It fires at most once per
// has-credential to empty transition, so concurrent terminal failures do not
// double-redirect.
func (r *Refresher) Teardown(reason string) {
	r.mu.Lock()
	empty := r.store.Get().Empty()
	if !empty {
		r.store.Clear()
	}
	r.mu.Unlock()

	if empty {
		return
	}

	if r.bus != nil {
		r.bus.Publish(context.Background(), events.TopicSessionTerminated, nil, map[string]string{"reason": reason})
	}
	if r.onTerminated != nil {
		r.onTerminated(reason)
	}
}
