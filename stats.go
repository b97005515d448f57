package docdb

import "sync/atomic"

// PoolStats is a snapshot of the connection pool across all servers. All fields are
// safe for concurrent access.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: GrowCount, ReconnectCount, OrphanReplies
type PoolStats struct {
	TotalConns     int32
	IdleConns      int32
	ActiveConns    int32
	GrowCount      uint64
	ReconnectCount uint64
	OrphanReplies  uint64
}

// ClientStats is a snapshot of client-wide operation counters.
type ClientStats struct {
	Reads         uint64
	Writes        uint64
	Errors        uint64
	TooLargeDrops uint64
}

// poolStatsCollector provides internal methods for updating pool stats.
// Not exported - the pool updates its own stats.
type poolStatsCollector struct {
	totalConns     atomic.Int32
	idleConns      atomic.Int32
	activeConns    atomic.Int32
	growCount      atomic.Uint64
	reconnectCount atomic.Uint64
	orphanReplies  atomic.Uint64
}

func newPoolStatsCollector() *poolStatsCollector {
	return &poolStatsCollector{}
}

func (c *poolStatsCollector) recordGrow() {
	c.growCount.Add(1)
	c.totalConns.Add(1)
}

func (c *poolStatsCollector) recordReconnect() {
	c.reconnectCount.Add(1)
}

func (c *poolStatsCollector) recordOrphanReply() {
	c.orphanReplies.Add(1)
}

func (c *poolStatsCollector) recordDestroy() {
	c.totalConns.Add(-1)
}

func (c *poolStatsCollector) recordAcquire() {
	c.idleConns.Add(-1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordRelease() {
	c.idleConns.Add(1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:     c.totalConns.Load(),
		IdleConns:      c.idleConns.Load(),
		ActiveConns:    c.activeConns.Load(),
		GrowCount:      c.growCount.Load(),
		ReconnectCount: c.reconnectCount.Load(),
		OrphanReplies:  c.orphanReplies.Load(),
	}
}

// clientStatsCollector provides internal methods for updating client
// stats. Not exported - the client updates its own stats.
type clientStatsCollector struct {
	reads         atomic.Uint64
	writes        atomic.Uint64
	errors        atomic.Uint64
	tooLargeDrops atomic.Uint64
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordRead() { c.reads.Add(1) }

func (c *clientStatsCollector) recordWrite() { c.writes.Add(1) }

func (c *clientStatsCollector) recordError() { c.errors.Add(1) }

func (c *clientStatsCollector) recordTooLargeDrop() { c.tooLargeDrops.Add(1) }

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Reads:         c.reads.Load(),
		Writes:        c.writes.Load(),
		Errors:        c.errors.Load(),
		TooLargeDrops: c.tooLargeDrops.Load(),
	}
}
