package common

import "time"

const (
	ReputationCacheTTL = 5 * time.Minute

	RequestIDHeader      = "X-WAF-Request-ID"
	ForwardedForHeader   = "X-Forwarded-For"
	ForwardedProtoHeader = "X-Forwarded-Proto"

	ReputationTTLName = "reputation"
)

// CacheConfig carries redis connection settings into the cache layer.
type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}
