package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Liveness sweeper: sweep more often than the threshold so worst-case
// detection latency stays at interval + threshold.
const (
	LivenessSweepInterval = 30 * time.Second
	InactivityThreshold   = 60 * time.Second
)

// Timeout for writes to the downstream time-series sink
const SinkWriteTimeout = 10 * time.Second

// Cap on metrics payload size
const MaxIngestBodySize = 1 << 20 // 1MB
