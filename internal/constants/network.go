package constants

import "time"

// HTTP client connection pool settings.
const (
	BaseMaxIdleConns        = 64
	BaseMaxIdleConnsPerHost = 16
	BaseIdleConnTimeout     = 90 * time.Second

	DefaultKeepAlive = 30 * time.Second
)

// HTTP timeout settings.
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultExpectContinueTimeout = 2 * time.Second
)

// TransportConfig defines transport layer options for the outbound client.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseHeaderTO    time.Duration
}

// BaseTransportConfig returns the default transport configuration.
func BaseTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        BaseMaxIdleConns,
		MaxIdleConnsPerHost: BaseMaxIdleConnsPerHost,
		IdleConnTimeout:     BaseIdleConnTimeout,
		DialTimeout:         DefaultDialTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		ResponseHeaderTO:    DefaultResponseHeaderTimeout,
	}
}
