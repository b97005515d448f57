package docdb

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

// TestConnectionNextIDNeverCollidesAcrossALongRun hashes every allocated
// request id into an xxh3 set and fails on the first repeat. nextID's
// only loop-exit condition is avoiding zero, so this is the cheapest way
// to self-check the allocator never wraps back onto a still-pending id
// within the range exercised here.
func TestConnectionNextIDNeverCollidesAcrossALongRun(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	conn := NewConnection(clientSide, 0, time.Second)
	defer conn.Close()

	seen := make(map[uint64]struct{}, 100_000)
	var buf [4]byte
	for i := 0; i < 100_000; i++ {
		id := conn.nextID()
		require.NotZero(t, id)

		binary.LittleEndian.PutUint32(buf[:], uint32(id))
		h := xxh3.Hash(buf[:])
		_, dup := seen[h]
		require.False(t, dup, "request id %d produced a duplicate hash key", id)
		seen[h] = struct{}{}
	}
}
