package doc

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"os"
	"sync/atomic"
	"time"
)

// ObjectID is a 12-byte value: a 4-byte timestamp, a 3-byte machine
// identifier, a 2-byte process identifier, and a 3-byte counter.
type ObjectID [12]byte

var (
	processMachineID = randomMachineID()
	processID        = uint16(os.Getpid())
	objectIDCounter   = randomCounter()
)

func randomMachineID() [3]byte {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return b
}

func randomCounter() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:]) & 0x00FFFFFF
}

// NewObjectID generates a fresh ObjectID using the current time, a
// per-process machine/process identifier pair, and a monotonic counter
// that wraps at 24 bits.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	id[4], id[5], id[6] = processMachineID[0], processMachineID[1], processMachineID[2]
	binary.BigEndian.PutUint16(id[7:9], processID)

	c := atomic.AddUint32(&objectIDCounter, 1) & 0x00FFFFFF
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)

	return id
}

// IsZero reports whether every byte of the ObjectID is zero.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Time returns the creation time encoded in the ObjectID's first 4 bytes.
func (id ObjectID) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0)
}
