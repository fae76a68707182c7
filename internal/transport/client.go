package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustline-client-go/internal/apierr"
	"trustline-client-go/internal/config"
	"trustline-client-go/internal/constants"
	"trustline-client-go/internal/logging"
	"trustline-client-go/internal/session"
	"trustline-client-go/internal/tracing"
)

const maxErrorBodySize = 1 << 20

// Client executes authenticated requests against the platform backends. It
// obtains a usable access token, attaches it, performs the call, and on a 401
// performs exactly one coordinated refresh-and-retry before surfacing a
// terminal error from the closed taxonomy.
type Client struct {
	cli       *http.Client
	store     session.Store
	clock     *session.Clock
	refresher *session.Refresher

	origins        map[Origin]string
	defaultTimeout time.Duration
	strictExpiry   bool
}

// ClientOption customizes Client creation.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for outbound calls (testing).
func WithHTTPClient(cli *http.Client) ClientOption {
	return func(c *Client) {
		if cli != nil {
			c.cli = cli
		}
	}
}

// New builds a Client from configuration. The underlying http.Client carries
// no global timeout; every request gets its own deadline.
func New(cfg *config.Config, store session.Store, clock *session.Clock, refresher *session.Refresher, opts ...ClientOption) *Client {
	tc := constants.BaseTransportConfig()
	tr := &http.Transport{
		Proxy: proxyFunc(cfg.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   tc.DialTimeout,
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   tc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: tc.ResponseHeaderTO,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          tc.MaxIdleConns,
		MaxIdleConnsPerHost:   tc.MaxIdleConnsPerHost,
		IdleConnTimeout:       tc.IdleConnTimeout,
	}

	c := &Client{
		cli:   &http.Client{Transport: tr, Timeout: 0},
		store: store,
		clock: clock,
		refresher: refresher,
		origins: map[Origin]string{
			OriginAPI:     strings.TrimRight(cfg.APIBaseURL, "/"),
			OriginFeature: strings.TrimRight(cfg.FeatureBaseURL, "/"),
		},
		defaultTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		strictExpiry:   cfg.StrictExpiry,
	}
	if c.defaultTimeout <= 0 {
		c.defaultTimeout = constants.DefaultRequestTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsed)
		}
	}
	return http.ProxyFromEnvironment
}

// Do executes the request. On success the response (2xx) is returned with an
// open body the caller must close. Every failure path returns *apierr.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	base, ok := c.origins[req.Origin]
	if !ok || base == "" {
		return nil, apierr.New(apierr.KindServer, "unknown backend origin: "+string(req.Origin))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	// One deadline covers the whole logical request, refresh-retry included.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "transport", "transport.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.String("backend.origin", string(req.Origin)),
	)

	requestID := uuid.New().String()
	entry := log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"path":       req.Path,
		"origin":     req.Origin,
	})

	token, err := c.resolveToken(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "no credential")
		return nil, err
	}

	c.debugLogBody(entry, req)

	resp, sendErr := c.send(ctx, base, req, token, requestID)
	if sendErr != nil {
		e := apierr.FromTransport(sendErr)
		entry.WithField("kind", logging.ErrorKind(0, true)).WithError(sendErr).Warn("request failed before response")
		span.SetStatus(codes.Error, string(e.Kind))
		return nil, e
	}

	retried := false
	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp)
		fresh, ok := c.refresher.Refresh(ctx)
		if ok {
			retried = true
			resp, sendErr = c.send(ctx, base, req, fresh, requestID)
			if sendErr != nil {
				e := apierr.FromTransport(sendErr)
				span.SetStatus(codes.Error, string(e.Kind))
				return nil, e
			}
		} else {
			// No fresh token; the 401 stands as authoritative.
			return nil, c.terminal401(entry, span, req, nil)
		}
	}
	span.SetAttributes(attribute.Bool("http.retried", retried))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry.WithField("status", resp.StatusCode).Debug("request ok")
		return resp, nil
	}

	body := readAndClose(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		// Still unauthorized after one refresh-retry. No more attempts.
		return nil, c.terminal401(entry, span, req, body)
	}

	e := apierr.FromResponse(resp.StatusCode, body)
	if e.Kind == apierr.KindAccountLocked && !req.NoLogout {
		c.refresher.Teardown(e.BackendCode)
	}
	entry.WithFields(log.Fields{
		"status": resp.StatusCode,
		"kind":   logging.ErrorKind(resp.StatusCode, false),
	}).Warn("request rejected")
	span.SetStatus(codes.Error, string(e.Kind))
	return nil, e
}

// resolveToken picks the credential to attach. A usable token is sent as-is;
// otherwise one refresh is attempted. If refresh fails non-fatally the stored
// token is used anyway (the server is the authority on staleness) unless
// strict expiry is configured.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.clock.Usable() {
		return c.store.Get().AccessToken, nil
	}

	if fresh, ok := c.refresher.Refresh(ctx); ok {
		return fresh, nil
	}

	tokens := c.store.Get()
	if !tokens.HasAccess() {
		return "", apierr.New(apierr.KindSessionExpired, "no credential available")
	}
	if c.strictExpiry {
		return "", apierr.New(apierr.KindSessionExpired, "access token expired and refresh failed")
	}
	return tokens.AccessToken, nil
}

func (c *Client) send(ctx context.Context, base string, req *Request, token, requestID string) (*http.Response, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, base+req.Path, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Request-ID", requestID)

	if needsIdempotencyKey(req) && httpReq.Header.Get("X-Idempotency-Key") == "" {
		// Generated once per logical request: Request.Header is mutated so
		// the refresh-retry resends the same key.
		key := uuid.New().String()
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set("X-Idempotency-Key", key)
		httpReq.Header.Set("X-Idempotency-Key", key)
	}

	return c.cli.Do(httpReq)
}

func (c *Client) terminal401(entry *log.Entry, span trace.Span, req *Request, body []byte) error {
	e := apierr.FromResponse(http.StatusUnauthorized, body)
	if !req.NoLogout {
		c.refresher.Teardown("unauthorized")
	}
	entry.WithField("kind", logging.ErrorKind(http.StatusUnauthorized, false)).Warn("session expired")
	span.SetStatus(codes.Error, string(e.Kind))
	return e
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
}

func readAndClose(resp *http.Response) []byte {
	if resp == nil || resp.Body == nil {
		return nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil
	}
	return body
}
