package docdb

import (
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config configures a Client: the seed addresses to discover a cluster
// from, connection pool sizing and timeouts, and the per-request and
// per-bundle size defaults that the planner and protocol layers fall
// back to until a server's own limits are learned by a probe.
type Config struct {
	Seeds []string

	MaxConnections   int32
	ScanLimit        int
	ReconnectTimeout time.Duration
	ReadTimeout      time.Duration

	Dialer *net.Dialer

	NewCircuitBreaker   func(address string) *gobreaker.CircuitBreaker[bool]
	BreakerMinSamples   uint32
	BreakerFailureRatio float64

	StatusProbeInterval time.Duration

	MaxBsonObjectSizeDefault         int32
	MaxBatchedWriteOperationsDefault int32
}

const (
	defaultMaxConnections      = 4
	defaultScanLimit           = 5
	defaultReconnectTimeout    = 5 * time.Second
	defaultReadTimeout         = 30 * time.Second
	defaultStatusProbeInterval = 10 * time.Second

	defaultBreakerMinSamples   = 3
	defaultBreakerFailureRatio = 0.6

	// defaultMaxBsonObjectSize mirrors the legacy MongoDB wire protocol's
	// floor of 16MiB, used until a server's isMaster/hello probe reports
	// its own maxBsonObjectSize.
	defaultMaxBsonObjectSize = 16 * 1024 * 1024

	// defaultMaxBatchedWriteOperations mirrors the legacy floor of 1000
	// operations per batch, used until a probe reports
	// maxWriteBatchSize.
	defaultMaxBatchedWriteOperations = 1000
)

// withDefaults returns a copy of cfg with every zero-valued field filled
// in with its default.
func (cfg Config) withDefaults() Config {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaultScanLimit
	}
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = defaultReconnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{Timeout: defaultReconnectTimeout}
	}
	if cfg.StatusProbeInterval <= 0 {
		cfg.StatusProbeInterval = defaultStatusProbeInterval
	}
	if cfg.MaxBsonObjectSizeDefault <= 0 {
		cfg.MaxBsonObjectSizeDefault = defaultMaxBsonObjectSize
	}
	if cfg.MaxBatchedWriteOperationsDefault <= 0 {
		cfg.MaxBatchedWriteOperationsDefault = defaultMaxBatchedWriteOperations
	}
	if cfg.BreakerMinSamples <= 0 {
		cfg.BreakerMinSamples = defaultBreakerMinSamples
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = defaultBreakerFailureRatio
	}
	if cfg.NewCircuitBreaker == nil {
		cfg.NewCircuitBreaker = NewCircuitBreakerConfig(cfg)
	}
	return cfg
}
