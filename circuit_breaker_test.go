package docdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig() Config {
	return Config{
		ReconnectTimeout:    10 * time.Second,
		BreakerMinSamples:   3,
		BreakerFailureRatio: 0.6,
	}
}

func TestNewCircuitBreakerConfigStartsClosed(t *testing.T) {
	factory := NewCircuitBreakerConfig(testBreakerConfig())
	cb := factory("server1:27017")
	require.NotNil(t, cb)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestNewCircuitBreakerConfigIsKeyedByServerAddress(t *testing.T) {
	factory := NewCircuitBreakerConfig(testBreakerConfig())
	a := factory("server1:27017")
	b := factory("server2:27017")
	assert.NotSame(t, a, b)
}

func TestCircuitBreakerTripsAfterRepeatedFailures(t *testing.T) {
	factory := NewCircuitBreakerConfig(testBreakerConfig())
	cb := factory("server1:27017")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (bool, error) {
			return false, fmt.Errorf("dial failed")
		})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	factory := NewCircuitBreakerConfig(testBreakerConfig())
	cb := factory("server1:27017")

	ok, err := cb.Execute(func() (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerStaysClosedBelowMinSamples(t *testing.T) {
	factory := NewCircuitBreakerConfig(testBreakerConfig())
	cb := factory("server1:27017")

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (bool, error) {
			return false, fmt.Errorf("dial failed")
		})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
