package docdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollectorTracksGrowAndDestroy(t *testing.T) {
	c := newPoolStatsCollector()

	c.recordGrow()
	c.recordGrow()
	c.recordDestroy()

	snap := c.snapshot()
	require.EqualValues(t, 1, snap.TotalConns)
	require.EqualValues(t, 2, snap.GrowCount)
}

func TestPoolStatsCollectorTracksAcquireRelease(t *testing.T) {
	c := newPoolStatsCollector()
	c.recordGrow()

	c.recordAcquire()
	snap := c.snapshot()
	require.EqualValues(t, 1, snap.ActiveConns)
	require.EqualValues(t, -1, snap.IdleConns)

	c.recordRelease()
	snap = c.snapshot()
	require.EqualValues(t, 0, snap.ActiveConns)
	require.EqualValues(t, 0, snap.IdleConns)
}

func TestPoolStatsCollectorTracksReconnectAndOrphans(t *testing.T) {
	c := newPoolStatsCollector()
	c.recordReconnect()
	c.recordOrphanReply()
	c.recordOrphanReply()

	snap := c.snapshot()
	require.EqualValues(t, 1, snap.ReconnectCount)
	require.EqualValues(t, 2, snap.OrphanReplies)
}

func TestClientStatsCollectorTracksReadsWritesErrors(t *testing.T) {
	c := newClientStatsCollector()
	c.recordRead()
	c.recordRead()
	c.recordWrite()
	c.recordError()
	c.recordTooLargeDrop()

	snap := c.snapshot()
	require.EqualValues(t, 2, snap.Reads)
	require.EqualValues(t, 1, snap.Writes)
	require.EqualValues(t, 1, snap.Errors)
	require.EqualValues(t, 1, snap.TooLargeDrops)
}
