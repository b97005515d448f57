package docdb

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/pior/docdb/readpref"
	"github.com/pior/docdb/topology"
	"github.com/pior/docdb/wire"
	"github.com/sony/gobreaker/v2"
)

// ErrCannotConnect is returned by Pool.pick when every rung of the ladder
// failed: no idle connection matched, the pool was already at
// maxConnections, and no in-flight reconnect completed before
// reconnectTimeout.
var ErrCannotConnect = errCannotConnect("no eligible connection and reconnect did not complete in time")

// entry pairs a live Connection with the topology.Server it was dialed
// against, so the pick ladder can test role and tag eligibility without
// a second lookup, and with the puddle resource it was acquired from so
// sweepIdle can destroy it.
type entry struct {
	conn   *Connection
	server *topology.Server
	res    *puddle.Resource[*Connection]
}

// Pool multiplexes a set of Connections across a Cluster's servers and
// picks one for each outgoing message by the read-preference ladder:
// idle scan, grow, least-loaded, wait-for-reconnect.
type Pool struct {
	cluster *topology.Cluster
	dial    func(ctx context.Context, addr string) (net.Conn, error)

	maxObjectSize    int
	readTimeout      time.Duration
	reconnectTimeout time.Duration
	scanLimit        int

	mu             sync.Mutex
	conns          []*entry
	maxConnections int32
	sequence       atomic.Uint64

	reconnecting  bool
	reconnectDone chan struct{}

	newBreaker func(addr string) *gobreaker.CircuitBreaker[bool]
	breakers   map[string]*gobreaker.CircuitBreaker[bool]

	serverPools map[string]*puddle.Pool[*Connection]
	stopSweep   chan struct{}

	stats  *poolStatsCollector
	closed bool
}

// NewPool builds a Pool over cluster using dial to open new sockets.
func NewPool(cluster *topology.Cluster, dial func(ctx context.Context, addr string) (net.Conn, error), cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cluster:          cluster,
		dial:             dial,
		maxObjectSize:    int(cfg.MaxBsonObjectSizeDefault),
		readTimeout:      cfg.ReadTimeout,
		reconnectTimeout: cfg.ReconnectTimeout,
		scanLimit:        cfg.ScanLimit,
		maxConnections:   cfg.MaxConnections,
		newBreaker:       cfg.NewCircuitBreaker,
		breakers:         make(map[string]*gobreaker.CircuitBreaker[bool]),
		serverPools:      make(map[string]*puddle.Pool[*Connection]),
		stopSweep:        make(chan struct{}),
		stats:            newPoolStatsCollector(),
	}
	go p.sweepLoop()
	return p
}

// SetMaxConnections clamps to >= 1 and marks any connections beyond the
// new limit for graceful shutdown, oldest first. The clamp and the
// shrink both take effect immediately; each shrunk-away connection's
// puddle resource is destroyed once it has drained or after readTimeout.
func (p *Pool) SetMaxConnections(n int32) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	p.maxConnections = n
	excess := len(p.conns) - int(n)
	var draining []*entry
	if excess > 0 {
		draining = append(draining, p.conns[:excess]...)
		p.conns = p.conns[excess:]
	}
	p.mu.Unlock()

	for _, e := range draining {
		e.conn.Shutdown(p.readTimeout)
		go func(e *entry) {
			e.conn.WaitForClosed(p.readTimeout)
			e.res.Destroy()
		}(e)
	}
}

// Stats returns a snapshot of pool-wide statistics.
func (p *Pool) Stats() PoolStats { return p.stats.snapshot() }

// Send picks an eligible connection per pref and dispatches msg on it.
// It never blocks on a specific connection's queue; it prefers to grow
// or diffuse load across the rotation.
func (p *Pool) Send(ctx context.Context, msg wire.Message, pref readpref.ReadPreference, cb ReplyCallback) {
	conn, err := p.pick(ctx, pref)
	if err != nil {
		cb(nil, err)
		return
	}
	conn.Send(msg, cb)
}

func (p *Pool) pick(ctx context.Context, pref readpref.ReadPreference) (*Connection, error) {
	if conn := p.idleScan(pref); conn != nil {
		return conn, nil
	}

	if conn, err := p.grow(ctx, pref); conn != nil || err != nil {
		return conn, err
	}

	if conn := p.leastLoaded(pref); conn != nil {
		return conn, nil
	}

	return p.waitForReconnect(ctx, pref)
}

// idleScan visits up to scanLimit connections starting from a shared
// rotating offset and returns the first eligible one with nothing
// in-flight.
func (p *Pool) idleScan(pref readpref.ReadPreference) *Connection {
	p.mu.Lock()
	snapshot := append([]*entry(nil), p.conns...)
	p.mu.Unlock()

	n := len(snapshot)
	if n == 0 {
		return nil
	}
	visits := p.scanLimit
	if visits > n {
		visits = n
	}
	for i := 0; i < visits; i++ {
		idx := int(p.sequence.Add(1)-1) % n
		e := snapshot[idx]
		if e.conn.IsOpen() && e.conn.PendingCount() == 0 && pref.Eligible(e.server) {
			return e.conn
		}
	}
	return nil
}

// leastLoaded re-scans up to scanLimit connections and returns the
// eligible one with the fewest in-flight requests.
func (p *Pool) leastLoaded(pref readpref.ReadPreference) *Connection {
	p.mu.Lock()
	snapshot := append([]*entry(nil), p.conns...)
	p.mu.Unlock()

	n := len(snapshot)
	if n == 0 {
		return nil
	}
	visits := p.scanLimit
	if visits > n {
		visits = n
	}

	var best *Connection
	bestLoad := -1
	for i := 0; i < visits; i++ {
		idx := int(p.sequence.Add(1)-1) % n
		e := snapshot[idx]
		if !e.conn.IsOpen() || !pref.Eligible(e.server) {
			continue
		}
		load := e.conn.PendingCount()
		if best == nil || load < bestLoad {
			best, bestLoad = e.conn, load
		}
	}
	return best
}

// grow acquires one new connection under maxConnections, choosing the
// eligible server via pref (nearest for the Nearest mode, otherwise the
// first eligible in discovery order) and routing the acquisition
// through that server's puddle.Pool[*Connection], which gates
// construction against its own MaxSize and owns the Connection's
// Destructor.
func (p *Pool) grow(ctx context.Context, pref readpref.ReadPreference) (*Connection, error) {
	p.mu.Lock()
	if p.closed || int32(len(p.conns)) >= p.maxConnections {
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	server := p.chooseServer(pref)
	if server == nil {
		return nil, nil
	}

	sp, err := p.puddleFor(server)
	if err != nil {
		return nil, nil
	}

	res, err := sp.Acquire(ctx)
	if err != nil {
		return nil, nil // factory failure (including an open breaker): fall through to the next rung
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		res.Destroy()
		return nil, nil
	}
	p.conns = append(p.conns, &entry{conn: res.Value(), server: server, res: res})
	p.mu.Unlock()

	return res.Value(), nil
}

// puddleFor returns the lazily-created puddle for server's canonical
// address, sized to the pool's current maxConnections at creation time.
// puddle.Pool has no resize operation, so a later SetMaxConnections only
// changes the cluster-wide cap that grow checks before acquiring; a
// puddle created before a shrink keeps its original MaxSize as a (now
// slightly loose) per-server ceiling.
func (p *Pool) puddleFor(server *topology.Server) (*puddle.Pool[*Connection], error) {
	addr := server.CanonicalAddr()

	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok := p.serverPools[addr]; ok {
		return sp, nil
	}

	sp, err := newConnectionPuddle(func(ctx context.Context) (*Connection, error) {
		return p.dialAndWrap(ctx, server)
	}, p.maxConnections, p.stats)
	if err != nil {
		return nil, err
	}
	p.serverPools[addr] = sp
	return sp, nil
}

// sweepLoop periodically reclaims puddle slots held by connections that
// have since closed, since grow never releases an acquired resource
// back to its puddle as idle.
func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.reconnectTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapClosed()
		case <-p.stopSweep:
			return
		}
	}
}

func (p *Pool) reapClosed() {
	p.mu.Lock()
	p.conns = sweepIdle(p.conns)
	p.mu.Unlock()
}

func (p *Pool) chooseServer(pref readpref.ReadPreference) *topology.Server {
	var eligible []*topology.Server
	for _, s := range p.cluster.Servers() {
		if pref.Eligible(s) {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	if pref.Mode == readpref.Nearest {
		return readpref.PickNearest(eligible)
	}
	return eligible[0]
}

// dialAndWrap dials server, guarded by that server's circuit breaker if
// one is configured, and builds a Connection over the resulting socket.
// The breaker's result type is bool (dialed or not) rather than
// *Connection, since gobreaker's open-circuit short return has no
// Connection to hand back; the Connection itself is built outside
// Execute once the breaker confirms the attempt is allowed.
func (p *Pool) dialAndWrap(ctx context.Context, server *topology.Server) (*Connection, error) {
	breaker := p.breakerFor(server.CanonicalAddr())

	var netConn net.Conn
	dial := func() (bool, error) {
		var err error
		netConn, err = p.dial(ctx, server.WorkingAddr())
		return err == nil, err
	}

	var err error
	if breaker == nil {
		_, err = dial()
	} else {
		_, err = breaker.Execute(dial)
	}
	if err != nil {
		return nil, err
	}
	conn := NewConnection(netConn, p.maxObjectSize, p.readTimeout)
	conn.onOrphan = func(int32) { p.stats.recordOrphanReply() }
	return conn, nil
}

func (p *Pool) breakerFor(addr string) *gobreaker.CircuitBreaker[bool] {
	if p.newBreaker == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[addr]; ok {
		return b
	}
	b := p.newBreaker(addr)
	p.breakers[addr] = b
	return b
}

// waitForReconnect is the last rung. If no reconnect is in flight, the
// caller becomes the reconnect attempt: one more grow, failing with
// cannot-connect if that yields nothing. Otherwise it waits up to
// reconnectTimeout for the in-flight attempt to complete, then restarts
// the ladder from idleScan. It fails with cannot-connect on timeout or
// when the restarted ladder still finds nothing.
func (p *Pool) waitForReconnect(ctx context.Context, pref readpref.ReadPreference) (*Connection, error) {
	p.mu.Lock()
	if !p.reconnecting {
		p.reconnecting = true
		p.reconnectDone = make(chan struct{})
		done := p.reconnectDone
		p.mu.Unlock()

		conn, err := p.grow(ctx, pref)
		p.mu.Lock()
		p.reconnecting = false
		close(done)
		p.mu.Unlock()

		p.stats.recordReconnect()
		if conn != nil {
			return conn, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrCannotConnect
	}
	done := p.reconnectDone
	p.mu.Unlock()

	select {
	case <-done:
		if conn := p.idleScan(pref); conn != nil {
			return conn, nil
		}
		if conn, err := p.grow(ctx, pref); conn != nil || err != nil {
			return conn, err
		}
		if conn := p.leastLoaded(pref); conn != nil {
			return conn, nil
		}
		return nil, ErrCannotConnect
	case <-time.After(p.reconnectTimeout):
		return nil, ErrCannotConnect
	case <-ctx.Done():
		return nil, errInterrupted()
	}
}

// Close destroys every connection in the pool and stops the idle sweep.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	conns := p.conns
	p.conns = nil
	pools := p.serverPools
	p.serverPools = nil
	p.mu.Unlock()

	close(p.stopSweep)

	for _, e := range conns {
		e.res.Destroy()
	}
	for _, sp := range pools {
		sp.Close()
	}
}
