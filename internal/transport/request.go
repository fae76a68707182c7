package transport

import (
	"net/http"
	"strings"
	"time"
)

// Origin selects which backend a request targets. Both origins validate the
// same bearer token; the pipeline is otherwise origin-agnostic.
type Origin string

const (
	// OriginAPI is the primary platform API.
	OriginAPI Origin = "api"
	// OriginFeature is the secondary feature service.
	OriginFeature Origin = "feature"
)

// Request describes one logical authenticated request.
type Request struct {
	Origin Origin
	Method string
	Path   string
	Header http.Header
	Body   []byte

	// Idempotent forces an idempotency key even off the allow-list.
	Idempotent bool
	// NoLogout marks a background probe that must not tear the session down
	// on an authoritative 401.
	NoLogout bool
	// Timeout overrides the default per-request deadline.
	Timeout time.Duration
}

// Sensitive mutating endpoints that always carry an idempotency key so a
// retried delivery is not applied twice server-side.
var idempotencyPaths = []string{
	"/wallet/transfer",
	"/wallet/withdrawals",
	"/guarantees/",
	"/disputes/",
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func needsIdempotencyKey(req *Request) bool {
	if !isMutating(req.Method) {
		return false
	}
	if req.Idempotent {
		return true
	}
	for _, prefix := range idempotencyPaths {
		if strings.HasPrefix(req.Path, prefix) {
			return true
		}
	}
	return false
}
