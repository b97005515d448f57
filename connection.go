package docdb

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/docdb/wire"
)

// ReplyCallback receives the reply to a message Connection.Send dispatched,
// or a non-nil error if the request could not be completed. Replies are
// delivered on the connection's reader goroutine; a failure may instead
// be delivered on the goroutine calling Send or Close. It must not block.
type ReplyCallback func(*wire.Reply, error)

// Connection owns one TCP socket to one server. It frames and writes
// messages handed to Send, reads framed replies off a single reader
// goroutine, and dispatches each reply to the callback registered under
// its request-id.
type Connection struct {
	addr          string
	conn          net.Conn
	bw            *bufio.Writer
	maxObjectSize int
	readTimeout   time.Duration

	nextRequestID atomic.Int32
	pendingCount  atomic.Int32

	// onOrphan, if set, fires on the reader goroutine for every reply
	// whose request-id has no registered callback, so a caller can
	// count the event instead of the connection silently discarding it.
	onOrphan func(responseTo int32)

	mu        sync.Mutex
	pending   map[int32]ReplyCallback
	shutdown  bool
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewConnection takes ownership of conn and starts its reader loop.
// maxObjectSize bounds outgoing message size; <= 0 disables the check.
func NewConnection(conn net.Conn, maxObjectSize int, readTimeout time.Duration) *Connection {
	c := &Connection{
		addr:          conn.RemoteAddr().String(),
		conn:          conn,
		bw:            bufio.NewWriter(conn),
		maxObjectSize: maxObjectSize,
		readTimeout:   readTimeout,
		pending:       make(map[int32]ReplyCallback),
		closeCh:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Addr is the remote address this connection was dialed to.
func (c *Connection) Addr() string { return c.addr }

// PendingCount is the number of in-flight messages awaiting a reply.
func (c *Connection) PendingCount() int { return int(c.pendingCount.Load()) }

// IsOpen reports whether the connection still accepts new sends.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.shutdown
}

// WaitForClosed blocks until the connection has fully closed or the
// timeout elapses, returning true if it closed in time.
func (c *Connection) WaitForClosed(timeout time.Duration) bool {
	select {
	case <-c.closeCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// nextID allocates the next monotonic, non-zero request id.
func (c *Connection) nextID() int32 {
	for {
		id := c.nextRequestID.Add(1)
		if id != 0 {
			return id
		}
	}
}

// Send assigns a request-id, registers cb under it, and writes the framed
// message. If the connection is shutting down or closed, cb fires
// synchronously with a connection-lost error and no write is attempted.
func (c *Connection) Send(msg wire.Message, cb ReplyCallback) {
	c.mu.Lock()
	if c.closed || c.shutdown {
		c.mu.Unlock()
		cb(nil, errConnectionLost(nil))
		return
	}
	id := c.nextID()
	c.pending[id] = cb
	c.mu.Unlock()
	c.pendingCount.Add(1)

	if err := wire.WriteMessage(c.bw, msg, id, 0, c.maxObjectSize); err != nil {
		if cb, ok := c.removePending(id); ok {
			if errors.Is(err, wire.ErrMessageTooLarge) {
				cb(nil, errDocumentTooLarge(err.Error()))
			} else {
				cb(nil, errConnectionLost(err))
			}
		}
		c.pendingCount.Add(-1)
		if !errors.Is(err, wire.ErrMessageTooLarge) {
			c.Close()
		}
	}
}

// Shutdown refuses new sends; in-flight replies still get delivered as
// they arrive, and the socket closes once the pending set drains or grace
// elapses, whichever comes first.
func (c *Connection) Shutdown(grace time.Duration) {
	c.mu.Lock()
	if c.shutdown || c.closed {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	empty := len(c.pending) == 0
	c.mu.Unlock()

	if empty {
		c.Close()
		return
	}
	go func() {
		if !c.WaitForClosed(grace) {
			c.Close()
		}
	}()
}

// Close hard-closes the socket and fails every pending callback with
// connection-lost: callers must treat any server-side effect of those
// requests as undefined.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	err := c.conn.Close()
	for _, cb := range pending {
		cb(nil, errConnectionLost(nil))
	}
	c.closeOnce.Do(func() { close(c.closeCh) })
	return err
}

// closeIfDrainedShutdown closes the socket once a Shutdown-in-progress
// connection has no pending requests left.
func (c *Connection) closeIfDrainedShutdown() {
	c.mu.Lock()
	drained := c.shutdown && !c.closed && len(c.pending) == 0
	c.mu.Unlock()
	if drained {
		c.Close()
	}
}

func (c *Connection) removePending(id int32) (ReplyCallback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return cb, ok
}

// readLoop consumes framed replies until the socket errors, dispatching
// each to the callback matching its response-to id. A reply with no
// matching pending request is an orphan: it is reported to onOrphan, if
// set, and discarded. A short read or decode failure is fatal to the
// connection.
func (c *Connection) readLoop() {
	for {
		reply, err := wire.ReadReply(c.conn)
		if err != nil {
			c.Close()
			return
		}

		cb, ok := c.removePending(reply.ResponseTo)
		if !ok {
			if c.onOrphan != nil {
				c.onOrphan(reply.ResponseTo)
			}
			continue
		}
		c.pendingCount.Add(-1)
		c.closeIfDrainedShutdown()
		cb(reply, nil)
	}
}
