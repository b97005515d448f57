package readpref

import (
	"testing"

	"github.com/pior/docdb/topology"
	"github.com/stretchr/testify/require"
)

func TestMatchesRole(t *testing.T) {
	primary := topology.NewServer("p:1")
	primary.ApplyProbe(topology.ProbeResult{IsMaster: true})

	secondary := topology.NewServer("s:1")
	secondary.ApplyProbe(topology.ProbeResult{Secondary: true})

	down := topology.NewServer("d:1")

	require.True(t, PrimaryPref().Eligible(primary))
	require.False(t, PrimaryPref().Eligible(secondary))

	require.True(t, ReadPreference{Mode: Secondary}.Eligible(secondary))
	require.False(t, ReadPreference{Mode: Secondary}.Eligible(primary))

	require.True(t, NearestPref().Eligible(primary))
	require.True(t, NearestPref().Eligible(secondary))
	require.False(t, NearestPref().Eligible(down))
}

func TestPickNearestPrefersLowestLatency(t *testing.T) {
	fast := topology.NewServer("fast:1")
	fast.RecordLatency(1_000_000)

	slow := topology.NewServer("slow:1")
	slow.RecordLatency(50_000_000)

	require.Same(t, fast, PickNearest([]*topology.Server{slow, fast}))
}
