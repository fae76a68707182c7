package constants

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	// MaxUnauthorizedRetries caps 401-triggered retries per logical request.
	MaxUnauthorizedRetries = 1

	// RefreshThrottleBurst allows a short burst of refresh exchanges before
	// RefreshThrottleRate applies.
	RefreshThrottleBurst = 3
)

// RefreshThrottleRate limits how often a new refresh exchange may start.
// Callers joining an in-flight exchange are never throttled.
var RefreshThrottleRate = rate.Every(2 * time.Second)
