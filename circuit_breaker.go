package docdb

import (
	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a factory that builds one circuit
// breaker per server address, each guarding that server's reconnect
// dials independently. The thresholds come from cfg rather than being
// hardcoded: BreakerMinSamples and BreakerFailureRatio gate the trip on
// a handful of dial attempts, since dials are far rarer than ordinary
// requests, and both Interval and Timeout are tied to
// cfg.ReconnectTimeout, so a tripped breaker reopens for a probing dial
// on the same cadence a caller blocked in Pool.waitForReconnect would
// have given up on anyway.
func NewCircuitBreakerConfig(cfg Config) func(string) *gobreaker.CircuitBreaker[bool] {
	minSamples := cfg.BreakerMinSamples
	minFailureRatio := cfg.BreakerFailureRatio
	cadence := cfg.ReconnectTimeout

	return func(serverAddr string) *gobreaker.CircuitBreaker[bool] {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: 1,
			Interval:    cadence,
			Timeout:     cadence,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < minSamples {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= minFailureRatio
			},
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}
