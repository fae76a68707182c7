// Package platform holds thin typed wrappers over the authenticated request
// pipeline. Each service supplies a path, method and body and interprets the
// domain fields of the response; all credential and error semantics live in
// the transport layer.
package platform

import (
	"context"

	"trustline-client-go/internal/transport"
)

// Doer is the slice of the transport client the services need.
type Doer interface {
	DoJSON(ctx context.Context, req *transport.Request, out any) error
}
