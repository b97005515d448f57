package docdb

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/pior/docdb/doc"
	"github.com/pior/docdb/planner"
	"github.com/pior/docdb/readpref"
	"github.com/pior/docdb/topology"
	"github.com/pior/docdb/wire"
	"github.com/stretchr/testify/require"
)

// fakeMongoServer is an in-process listener that answers isMaster with a
// writable reply, buildInfo with a version, every other command with
// ok:1, n:1, nModified:1, and every non-query message with ok:1, so
// Client tests exercise real framing and decoding without a live server.
func fakeMongoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeMongo(conn)
		}
	}()

	return ln.Addr().String()
}

func serveFakeMongo(conn net.Conn) {
	defer conn.Close()
	for {
		h, body, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		var msg wire.Message
		if h.OpCode == wire.OpQuery {
			q, err := decodeFakeQuery(body)
			if err != nil {
				return
			}
			msg = q
		}

		reply := replyFor(msg)
		if reply == nil {
			continue
		}
		if err := wire.WriteMessage(conn, reply, 0, h.RequestID, 0); err != nil {
			return
		}
	}
}

// decodeFakeQuery parses an OP_QUERY body (flags, collection name, skip,
// batch size, query document) far enough for replyFor to read its
// selector, since wire.DecodeBody decodes replies only.
func decodeFakeQuery(body []byte) (*wire.Query, error) {
	if len(body) < 4 {
		return nil, wire.ErrShortFrame
	}
	nameEnd := bytes.IndexByte(body[4:], 0)
	if nameEnd < 0 || len(body) < 4+nameEnd+1+8 {
		return nil, wire.ErrShortFrame
	}
	selector, _, err := doc.Decode(body[4+nameEnd+1+8:])
	if err != nil {
		return nil, err
	}
	return &wire.Query{FullCollectionName: string(body[4 : 4+nameEnd]), Selector: selector}, nil
}

func replyFor(msg wire.Message) *wire.Reply {
	q, ok := msg.(*wire.Query)
	if !ok {
		return &wire.Reply{Documents: []*doc.Document{doc.MustDocument(doc.NewInt32("ok", 1))}}
	}

	if _, isIsMaster := q.Selector.Get("isMaster"); isIsMaster {
		d := doc.MustDocument(
			doc.NewBoolean("ismaster", true),
			doc.NewInt32("maxBsonObjectSize", 16*1024*1024),
			doc.NewInt32("maxWriteBatchSize", 1000),
			doc.NewInt32("maxWireVersion", 13),
		)
		return &wire.Reply{Documents: []*doc.Document{d}}
	}
	if _, isBuildInfo := q.Selector.Get("buildInfo"); isBuildInfo {
		d := doc.MustDocument(doc.NewString("version", "4.2.0"))
		return &wire.Reply{Documents: []*doc.Document{d}}
	}

	d := doc.MustDocument(doc.NewInt32("ok", 1), doc.NewInt32("n", 1), doc.NewInt32("nModified", 1))
	return &wire.Reply{Documents: []*doc.Document{d}}
}

func testConfig(addr string) Config {
	return Config{
		Seeds:               []string{addr},
		MaxConnections:      2,
		ScanLimit:           5,
		ReconnectTimeout:    time.Second,
		ReadTimeout:         5 * time.Second,
		StatusProbeInterval: time.Hour, // one manual probe via NewClient, no ticking mid-test
		Dialer:              &net.Dialer{Timeout: time.Second},
	}
}

func TestNewClientProbesSeedsAndMarksWritable(t *testing.T) {
	addr := fakeMongoServer(t)
	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		servers := client.cluster.Servers()
		return len(servers) == 1 && servers[0].Role() == topology.RoleWritable
	}, time.Second, 10*time.Millisecond)
}

func TestClientInsertRoundTrips(t *testing.T) {
	addr := fakeMongoServer(t)
	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	d := doc.MustDocument(doc.NewString("name", "widget")).WithID()

	done := make(chan struct{})
	var gotN int64
	var gotErr error
	client.Insert(context.Background(), "testdb", "widgets", d, planner.Ack(), func(n int64, err error) {
		gotN, gotErr = n, err
		close(done)
	})
	<-done

	require.NoError(t, gotErr)
	require.EqualValues(t, 1, gotN)
}

func TestClientFindOneRoundTrips(t *testing.T) {
	addr := fakeMongoServer(t)
	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	query := doc.MustDocument(doc.NewString("name", "widget"))

	done := make(chan struct{})
	var gotErr error
	client.FindOne(context.Background(), "testdb", "widgets", query, readpref.PrimaryPref(), func(_ *doc.Document, err error) {
		gotErr = err
		close(done)
	})
	<-done

	require.NoError(t, gotErr)
}

func TestClientUpdateOneRoundTrips(t *testing.T) {
	addr := fakeMongoServer(t)
	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	query := doc.MustDocument(doc.NewString("name", "widget"))
	update := doc.MustDocument(doc.NewDocumentElement("$set", doc.MustDocument(doc.NewInt32("qty", 3))))

	done := make(chan struct{})
	var gotModified int64
	var gotErr error
	client.UpdateOne(context.Background(), "testdb", "widgets", query, update, false, planner.Ack(), func(modified int64, err error) {
		gotModified, gotErr = modified, err
		close(done)
	})
	<-done

	require.NoError(t, gotErr)
	require.EqualValues(t, 1, gotModified)
}

func TestClientStatsTrackWritesAndReads(t *testing.T) {
	addr := fakeMongoServer(t)
	client, err := NewClient(testConfig(addr))
	require.NoError(t, err)
	defer client.Close()

	done := make(chan struct{})
	client.FindOne(context.Background(), "testdb", "widgets", doc.Empty(), readpref.PrimaryPref(), func(_ *doc.Document, _ error) {
		close(done)
	})
	<-done

	writeDone := make(chan struct{})
	client.Insert(context.Background(), "testdb", "widgets", doc.MustDocument(doc.NewString("name", "widget")), planner.Ack(), func(_ int64, _ error) {
		close(writeDone)
	})
	<-writeDone

	require.GreaterOrEqual(t, client.Stats().Reads, uint64(1))
	require.GreaterOrEqual(t, client.Stats().Writes, uint64(1))
}
