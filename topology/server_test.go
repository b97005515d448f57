package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerRoleTransitionPublishesPropertyChange(t *testing.T) {
	s := NewServer("a:27017")
	require.Equal(t, RoleUnknown, s.Role())

	events := s.Subscribe()
	s.ApplyProbe(ProbeResult{IsMaster: false, Secondary: true})

	require.Equal(t, RoleReadOnly, s.Role())
	require.Equal(t, float64(0), s.LagSeconds())

	change := <-events
	require.Equal(t, "role", change.Field)
	require.Equal(t, RoleUnknown, change.Old)
	require.Equal(t, RoleReadOnly, change.New)
}

func TestServerRoleWritable(t *testing.T) {
	s := NewServer("a:27017")
	s.ApplyProbe(ProbeResult{IsMaster: true})
	require.Equal(t, RoleWritable, s.Role())
	require.Equal(t, float64(0), s.LagSeconds())
}

func TestServerRoleUnavailable(t *testing.T) {
	s := NewServer("a:27017")
	s.ApplyProbe(ProbeResult{})
	require.Equal(t, RoleUnavailable, s.Role())
	require.Equal(t, lagUnknown, s.LagSeconds())
}

func TestServerExplicitReplicaSetStatus(t *testing.T) {
	s := NewServer("a:27017")
	s.ApplyProbe(ProbeResult{HasReplicaSetStatus: true, MyState: 2, LagSeconds: 4.5})
	require.Equal(t, RoleReadOnly, s.Role())
	require.Equal(t, 4.5, s.LagSeconds())

	s.ApplyProbe(ProbeResult{HasReplicaSetStatus: true, MyState: 1})
	require.Equal(t, RoleWritable, s.Role())
	require.Equal(t, float64(0), s.LagSeconds())
}

func TestLatencyEMABootstrapAndBlend(t *testing.T) {
	s := NewServer("a:27017")
	require.Equal(t, latencyUnknown, s.LatencyEMA())

	s.RecordLatency(10_000_000) // 10ms
	require.Equal(t, float64(10), s.LatencyEMA())

	s.RecordLatency(20_000_000) // 20ms
	want := latencyAlpha*20 + (1-latencyAlpha)*10
	require.InDelta(t, want, s.LatencyEMA(), 1e-9)
}

func TestLatencyBootstrapZeroesLagSentinel(t *testing.T) {
	s := NewServer("a:27017")
	require.Equal(t, lagUnknown, s.LagSeconds())
	s.RecordLatency(5_000_000)
	require.Equal(t, float64(0), s.LagSeconds())
}

func TestVersionPrecedence(t *testing.T) {
	s := NewServer("a:27017")

	s.ApplyProbe(ProbeResult{WireVersion: 7})
	require.Equal(t, "wire-7", s.Version())

	s.ApplyProbe(ProbeResult{VersionArray: []int32{4, 2, 1}})
	require.Equal(t, "4.2.1", s.Version())

	// A later, lower wire-version floor must never downgrade a precise version.
	s.ApplyProbe(ProbeResult{WireVersion: 3})
	require.Equal(t, "4.2.1", s.Version())
}

func TestNeedsVersionProbe(t *testing.T) {
	s := NewServer("a:27017")
	require.True(t, s.NeedsVersionProbe(s.lastVersionProbe))
	s.ApplyProbe(ProbeResult{VersionString: "5.0.0"})
	require.False(t, s.NeedsVersionProbe(s.lastVersionProbe))
}
