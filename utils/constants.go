package utils

import (
	"time"
)

// Request handling constants
const (
	// RequestTimeout bounds the storage work done for a single request
	RequestTimeout = 10 * time.Second

	// HealthCheckTimeout bounds dependency pings on the health endpoint
	HealthCheckTimeout = 3 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Cache keys (prefixed with CACHE_REDIS_PREFIX)
const (
	CounterCacheKey = "counter:main"
)
