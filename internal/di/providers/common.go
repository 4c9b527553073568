package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// cacheGCInterval is how often the response cache reclaims expired entries.
	cacheGCInterval = 10 * time.Minute
)
