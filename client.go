package docdb

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pior/docdb/callbacks"
	"github.com/pior/docdb/doc"
	"github.com/pior/docdb/internal/coarsetime"
	"github.com/pior/docdb/planner"
	"github.com/pior/docdb/readpref"
	"github.com/pior/docdb/topology"
	"github.com/pior/docdb/wire"
)

// Client is the top-level handle to a cluster: it owns discovery, the
// connection pool, and the status-probe loop that keeps server state
// current.
type Client struct {
	cfg     Config
	cluster *topology.Cluster
	pool    *Pool
	stats   *clientStatsCollector

	monitorMu   sync.Mutex
	monitorConn map[string]*Connection

	stopProbe chan struct{}
	probeDone chan struct{}
}

// NewClient discovers the seeds in cfg and starts the status-probe loop.
// Cluster kind starts Unknown and is refined once the first probes come
// back (a probe reply carrying a set name promotes it to ReplicaSet).
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	cluster := topology.NewCluster(topology.KindUnknown, cfg.Seeds)

	c := &Client{
		cfg:         cfg,
		cluster:     cluster,
		stats:       newClientStatsCollector(),
		monitorConn: make(map[string]*Connection),
		stopProbe:   make(chan struct{}),
		probeDone:   make(chan struct{}),
	}
	c.pool = NewPool(cluster, c.dial, cfg)

	c.probeAll()
	go c.probeLoop()

	return c, nil
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	return c.cfg.Dialer.DialContext(ctx, "tcp", addr)
}

// Close stops the probe loop and shuts down every connection, including
// the dedicated monitor connections.
func (c *Client) Close() error {
	close(c.stopProbe)
	<-c.probeDone

	c.monitorMu.Lock()
	monitors := c.monitorConn
	c.monitorConn = nil
	c.monitorMu.Unlock()
	for _, mc := range monitors {
		mc.Close()
	}

	c.pool.Close()
	return nil
}

// Stats returns a snapshot of client-wide operation counters.
func (c *Client) Stats() ClientStats { return c.stats.snapshot() }

// PoolStats returns a snapshot of connection-pool statistics.
func (c *Client) PoolStats() PoolStats { return c.pool.Stats() }

func (c *Client) probeLoop() {
	defer close(c.probeDone)
	ticker := time.NewTicker(c.cfg.StatusProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopProbe:
			return
		case <-ticker.C:
			c.probeAll()
		}
	}
}

func (c *Client) probeAll() {
	for _, server := range c.cluster.Servers() {
		c.probeOne(server)
	}
}

// probeOne issues an isMaster (plus, lazily, buildInfo) command over a
// dedicated monitor connection for server, independent of the pool's
// rotation, and applies the result regardless of the server's current
// role.
func (c *Client) probeOne(server *topology.Server) {
	conn, err := c.monitorConnectionFor(server)
	if err != nil {
		server.ApplyProbe(topology.ProbeResult{})
		return
	}

	start := coarsetime.Now()
	needsVersion := server.NeedsVersionProbe(start)

	cmd := doc.MustDocument(doc.NewInt32("isMaster", 1))
	done := make(chan struct{})
	var reply *wire.Reply
	var sendErr error
	conn.Send(wire.NewCommand("admin", cmd), func(r *wire.Reply, e error) {
		reply, sendErr = r, e
		close(done)
	})
	<-done

	if sendErr != nil {
		c.dropMonitorConnection(server.CanonicalAddr())
		return
	}
	server.RecordLatency(coarsetime.Now().Sub(start).Nanoseconds())

	probe := parseIsMasterReply(reply)
	if needsVersion {
		if bi := c.fetchBuildInfo(conn); bi != nil {
			probe.VersionArray = bi.VersionArray
			probe.VersionString = bi.VersionString
		}
	}
	oldAddr := server.CanonicalAddr()
	server.ApplyProbe(probe)
	if probe.SetName != "" {
		c.cluster.SetKind(topology.KindReplicaSet)
	}

	for _, host := range probe.Hosts {
		c.cluster.Discover(host)
	}
	if probe.Me != "" && probe.Me != oldAddr {
		c.cluster.Rename(oldAddr, probe.Me)
	}
}

func (c *Client) monitorConnectionFor(server *topology.Server) (*Connection, error) {
	addr := server.CanonicalAddr()

	c.monitorMu.Lock()
	if conn, ok := c.monitorConn[addr]; ok && conn.IsOpen() {
		c.monitorMu.Unlock()
		return conn, nil
	}
	c.monitorMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReconnectTimeout)
	defer cancel()
	netConn, err := c.dial(ctx, server.WorkingAddr())
	if err != nil {
		return nil, err
	}
	conn := NewConnection(netConn, int(c.cfg.MaxBsonObjectSizeDefault), c.cfg.ReadTimeout)

	c.monitorMu.Lock()
	if c.monitorConn == nil {
		c.monitorMu.Unlock()
		conn.Close()
		return nil, errInterrupted()
	}
	c.monitorConn[addr] = conn
	c.monitorMu.Unlock()

	return conn, nil
}

func (c *Client) dropMonitorConnection(addr string) {
	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()
	if conn, ok := c.monitorConn[addr]; ok {
		conn.Close()
		delete(c.monitorConn, addr)
	}
}

type buildInfoResult struct {
	VersionArray  []int32
	VersionString string
}

func (c *Client) fetchBuildInfo(conn *Connection) *buildInfoResult {
	cmd := doc.MustDocument(doc.NewInt32("buildInfo", 1))
	done := make(chan struct{})
	var reply *wire.Reply
	conn.Send(wire.NewCommand("admin", cmd), func(r *wire.Reply, err error) {
		if err == nil {
			reply = r
		}
		close(done)
	})
	<-done
	if reply == nil || len(reply.Documents) == 0 {
		return nil
	}
	d := reply.Documents[0]
	bi := &buildInfoResult{}
	if el, ok := d.Get("version"); ok {
		if s, ok := el.Value.(string); ok {
			bi.VersionString = s
		}
	}
	if el, ok := d.Get("versionArray"); ok {
		if arr, ok := el.Value.(doc.Array); ok {
			for _, e := range arr {
				if v, ok := e.Value.(int32); ok {
					bi.VersionArray = append(bi.VersionArray, v)
				}
			}
		}
	}
	return bi
}

// parseIsMasterReply normalizes an isMaster command reply into a
// topology.ProbeResult. It does not set VersionArray/VersionString;
// those come from a separate buildInfo probe on its own cadence.
func parseIsMasterReply(reply *wire.Reply) topology.ProbeResult {
	var probe topology.ProbeResult
	if reply == nil || len(reply.Documents) == 0 {
		return probe
	}
	d := reply.Documents[0]

	if el, ok := d.Get("ismaster"); ok {
		probe.IsMaster = boolValue(el)
	}
	if el, ok := d.Get("secondary"); ok {
		probe.Secondary = boolValue(el)
	}
	if el, ok := d.Get("arbiterOnly"); ok {
		probe.ArbiterOnly = boolValue(el)
	}
	if el, ok := d.Get("me"); ok {
		if s, ok := el.Value.(string); ok {
			probe.Me = s
		}
	}
	if el, ok := d.Get("setName"); ok {
		if s, ok := el.Value.(string); ok {
			probe.SetName = s
		}
	}
	if el, ok := d.Get("tags"); ok {
		if td, ok := el.Value.(*doc.Document); ok {
			probe.Tags = td
		}
	}
	if el, ok := d.Get("maxBsonObjectSize"); ok {
		probe.MaxBSONObjectSize = int32Value(el)
	}
	if el, ok := d.Get("maxWriteBatchSize"); ok {
		probe.MaxWriteBatchSize = int32Value(el)
	}
	if el, ok := d.Get("maxWireVersion"); ok {
		probe.WireVersion = int32Value(el)
	}
	if el, ok := d.Get("hosts"); ok {
		if arr, ok := el.Value.(doc.Array); ok {
			for _, e := range arr {
				if s, ok := e.Value.(string); ok {
					probe.Hosts = append(probe.Hosts, s)
				}
			}
		}
	}
	return probe
}

func boolValue(e doc.Element) bool {
	b, _ := e.Value.(bool)
	return b
}

func int32Value(e doc.Element) int32 {
	switch v := e.Value.(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case float64:
		return int32(v)
	default:
		return 0
	}
}

// RunCommand sends an arbitrary command document against db under pref
// and delivers the sole reply document to cb.
func (c *Client) RunCommand(ctx context.Context, db string, command *doc.Document, pref readpref.ReadPreference, cb func(*doc.Document, error)) {
	c.stats.recordRead()
	c.pool.Send(ctx, wire.NewCommand(db, command), pref, callbacks.Document(func(d *doc.Document, err error) {
		if err != nil {
			c.stats.recordError()
		}
		cb(d, err)
	}))
}

// FindOne issues a query with batchSize=-1 (single-batch) and delivers
// at most one document. A query matching no documents is reported as an
// empty reply, not an error; callers check for a nil document.
func (c *Client) FindOne(ctx context.Context, db, collection string, query *doc.Document, pref readpref.ReadPreference, cb func(*doc.Document, error)) {
	c.stats.recordRead()
	msg := &wire.Query{
		FullCollectionName: db + "." + collection,
		BatchSize:          -1,
		Selector:           query,
	}
	c.pool.Send(ctx, msg, pref, func(reply *wire.Reply, err error) {
		if err != nil {
			c.stats.recordError()
			cb(nil, err)
			return
		}
		if len(reply.Documents) == 0 {
			cb(nil, nil)
			return
		}
		cb(reply.Documents[0], nil)
	})
}

// Find issues a query with the given batchSize and delivers the first
// batch plus a cursor id for follow-up GetMore calls.
func (c *Client) Find(ctx context.Context, db, collection string, query *doc.Document, batchSize int32, pref readpref.ReadPreference, cb func(batch []*doc.Document, cursorID int64, err error)) {
	c.stats.recordRead()
	msg := &wire.Query{
		FullCollectionName: db + "." + collection,
		BatchSize:          batchSize,
		Selector:           query,
	}
	c.pool.Send(ctx, msg, pref, callbacks.Cursor(func(batch []*doc.Document, cursorID int64, err error) {
		if err != nil {
			c.stats.recordError()
		}
		cb(batch, cursorID, err)
	}))
}

// GetMore continues a cursor opened by Find.
func (c *Client) GetMore(ctx context.Context, db, collection string, cursorID int64, batchSize int32, pref readpref.ReadPreference, cb func(batch []*doc.Document, nextCursorID int64, err error)) {
	c.stats.recordRead()
	msg := &wire.GetMore{
		FullCollectionName: db + "." + collection,
		BatchSize:          batchSize,
		CursorID:           cursorID,
	}
	c.pool.Send(ctx, msg, pref, callbacks.Cursor(func(batch []*doc.Document, nextCursorID int64, err error) {
		if err != nil {
			c.stats.recordError()
		}
		cb(batch, nextCursorID, err)
	}))
}

// KillCursors closes server-side cursors the caller no longer intends to
// drain; fire-and-forget, no reply is awaited.
func (c *Client) KillCursors(ctx context.Context, cursorIDs []int64, pref readpref.ReadPreference) {
	c.pool.Send(ctx, &wire.KillCursors{CursorIDs: cursorIDs}, pref, func(*wire.Reply, error) {})
}

// BulkResult aggregates the outcome of executing every bundle a write
// operation plan produced.
type BulkResult struct {
	Matched      int64
	Modified     int64
	BundlesTried int
	Errors       []error
}

// ExecuteWrite plans ops into bundles (per mode and durability) and runs
// each bundle in submission order, stopping early only for
// serialize-and-stop mode once a bundle reports an error.
func (c *Client) ExecuteWrite(ctx context.Context, db, collection string, ops []planner.WriteOperation, durability planner.Durability, mode planner.Mode, cb func(BulkResult, error)) {
	bundles, err := planner.Plan(ops, collection, int(c.serverCommandSizeLimit()), int(c.serverBatchLimit()), durability, mode)
	if err != nil {
		c.stats.recordTooLargeDrop()
		cb(BulkResult{}, err)
		return
	}

	var result BulkResult
	c.runBundles(ctx, db, bundles, mode, &result, 0, cb)
}

func (c *Client) serverCommandSizeLimit() int32 {
	for _, s := range c.cluster.Servers() {
		if s.Role() == topology.RoleWritable {
			return s.MaxBSONObjectSize()
		}
	}
	return c.cfg.MaxBsonObjectSizeDefault
}

func (c *Client) serverBatchLimit() int32 {
	for _, s := range c.cluster.Servers() {
		if s.Role() == topology.RoleWritable {
			return s.MaxWriteBatchSize()
		}
	}
	return c.cfg.MaxBatchedWriteOperationsDefault
}

func (c *Client) runBundles(ctx context.Context, db string, bundles []planner.Bundle, mode planner.Mode, result *BulkResult, i int, cb func(BulkResult, error)) {
	if i >= len(bundles) {
		cb(*result, nil)
		return
	}
	bundle := bundles[i]
	c.stats.recordWrite()

	c.pool.Send(ctx, wire.NewCommand(db, bundle.Command), readpref.PrimaryPref(), callbacks.Document(func(d *doc.Document, err error) {
		result.BundlesTried++
		if err != nil {
			c.stats.recordError()
			result.Errors = append(result.Errors, err)
			if mode == planner.SerializeAndStop {
				cb(*result, nil)
				return
			}
			c.runBundles(ctx, db, bundles, mode, result, i+1, cb)
			return
		}
		accumulateBulkResult(result, d)
		c.runBundles(ctx, db, bundles, mode, result, i+1, cb)
	}))
}

func accumulateBulkResult(result *BulkResult, d *doc.Document) {
	if el, ok := d.Get("n"); ok {
		result.Matched += int64(int32Value(el))
	}
	if el, ok := d.Get("nModified"); ok {
		result.Modified += int64(int32Value(el))
	}
}

// Insert plans a single insert of document into collection under
// durability and delivers the server's acknowledgement count.
func (c *Client) Insert(ctx context.Context, db, collection string, document *doc.Document, durability planner.Durability, cb func(acknowledged int64, err error)) {
	c.ExecuteWrite(ctx, db, collection, []planner.WriteOperation{planner.NewInsert(document)}, durability, planner.SerializeAndStop, func(r BulkResult, err error) {
		if err != nil {
			cb(0, err)
			return
		}
		if len(r.Errors) > 0 {
			cb(0, r.Errors[0])
			return
		}
		cb(r.Matched, nil)
	})
}

// UpdateOne plans a single non-multi update and delivers the modified
// count.
func (c *Client) UpdateOne(ctx context.Context, db, collection string, query, update *doc.Document, upsert bool, durability planner.Durability, cb func(modified int64, err error)) {
	op := planner.NewUpdate(query, update, false, upsert)
	c.ExecuteWrite(ctx, db, collection, []planner.WriteOperation{op}, durability, planner.SerializeAndStop, func(r BulkResult, err error) {
		if err != nil {
			cb(0, err)
			return
		}
		if len(r.Errors) > 0 {
			cb(0, r.Errors[0])
			return
		}
		cb(r.Modified, nil)
	})
}

// Count runs the count command against collection and delivers the
// matched document count.
func (c *Client) Count(ctx context.Context, db, collection string, query *doc.Document, pref readpref.ReadPreference, cb func(count int64, err error)) {
	c.stats.recordRead()
	cmd := doc.MustDocument(doc.NewString("count", collection), doc.NewDocumentElement("query", query))
	c.pool.Send(ctx, wire.NewCommand(db, cmd), pref, callbacks.Counter("n", func(n int64, err error) {
		if err != nil {
			c.stats.recordError()
		}
		cb(n, err)
	}))
}

// DeleteOne plans a single-document delete and delivers the deleted
// count.
func (c *Client) DeleteOne(ctx context.Context, db, collection string, query *doc.Document, durability planner.Durability, cb func(deleted int64, err error)) {
	op := planner.NewDelete(query, true)
	c.ExecuteWrite(ctx, db, collection, []planner.WriteOperation{op}, durability, planner.SerializeAndStop, func(r BulkResult, err error) {
		if err != nil {
			cb(0, err)
			return
		}
		if len(r.Errors) > 0 {
			cb(0, r.Errors[0])
			return
		}
		cb(r.Matched, nil)
	})
}
