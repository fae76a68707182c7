package session

import (
	"time"

	"trustline-client-go/internal/constants"
)

// Clock decides whether the currently stored access token is safe to send.
// It is a pure predicate over store state and wall-clock time.
type Clock struct {
	store Store
	skew  time.Duration
	now   func() time.Time
}

// ClockOption customizes Clock creation.
type ClockOption func(*Clock)

// WithSkew overrides the expiry safety margin.
func WithSkew(skew time.Duration) ClockOption {
	return func(c *Clock) {
		if skew >= 0 {
			c.skew = skew
		}
	}
}

// WithClockNow overrides the wall clock (testing).
func WithClockNow(now func() time.Time) ClockOption {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClock constructs a Clock with the default skew.
func NewClock(store Store, opts ...ClockOption) *Clock {
	c := &Clock{
		store: store,
		skew:  constants.TokenExpirySkew,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Usable reports whether an access token is present and will remain valid
// past the safety skew. A token expiring within the skew window is treated
// as unusable so it is never sent only to expire mid-flight.
func (c *Clock) Usable() bool {
	tokens := c.store.Get()
	if !tokens.HasAccess() || tokens.ExpiresAt.IsZero() {
		return false
	}
	return c.now().Before(tokens.ExpiresAt.Add(-c.skew))
}
