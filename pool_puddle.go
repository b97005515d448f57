package docdb

import (
	"context"

	"github.com/jackc/puddle/v2"
)

// newConnectionPuddle builds a puddle-backed lifecycle manager for one
// server's sockets: construct on demand up to maxSize, destroy on
// eviction. Pool.grow acquires from it but never releases a resource
// back as idle: a Connection multiplexes many in-flight requests at
// once, so unlike a typical puddle consumer it is never exclusively
// checked out and handed back between uses. Acquire therefore only
// ever gates construction against maxSize; a resource leaves the
// puddle only through an explicit Destroy: sweepIdle's once the socket
// underneath it is gone, SetMaxConnections' once a shrunk-away
// connection has drained, or Pool.Close's.
func newConnectionPuddle(constructor func(ctx context.Context) (*Connection, error), maxSize int32, stats *poolStatsCollector) (*puddle.Pool[*Connection], error) {
	return puddle.NewPool(&puddle.Config[*Connection]{
		Constructor: func(ctx context.Context) (*Connection, error) {
			conn, err := constructor(ctx)
			if err == nil {
				stats.recordGrow()
			}
			return conn, err
		},
		Destructor: func(c *Connection) {
			stats.recordDestroy()
			_ = c.Close()
		},
		MaxSize: maxSize,
	})
}

// sweepIdle destroys every dead entry (its connection closed, whether
// by the peer, a read failure, or a prior write error) and compacts entries in place, returning the survivors. Since
// grow never releases a resource back to its puddle as idle, this —
// not puddle's own AcquireAllIdle — is what actually reclaims a slot
// against MaxSize once the socket underneath it is gone.
func sweepIdle(entries []*entry) []*entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.conn.IsOpen() {
			kept = append(kept, e)
			continue
		}
		e.res.Destroy()
	}
	return kept
}
