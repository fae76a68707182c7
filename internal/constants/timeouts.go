package constants

import "time"

const (
	// TokenExpirySkew is subtracted from an access token's nominal expiry so
	// a token that would expire mid-flight is treated as unusable.
	TokenExpirySkew = 30 * time.Second
	// RefreshTimeout bounds a single refresh exchange. The refresh call runs
	// in its own cancellation scope, never the triggering request's.
	RefreshTimeout = 15 * time.Second
	// DefaultRequestTimeout applies when a request carries no deadline.
	DefaultRequestTimeout = 30 * time.Second
	// StoreOpTimeout bounds a single persistence backend operation.
	StoreOpTimeout = 3 * time.Second
)
