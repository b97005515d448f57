package wire

import (
	"bytes"
	"testing"

	"github.com/pior/docdb/doc"
	"github.com/stretchr/testify/require"
)

func TestEncodeThenReadFrameRoundTrips(t *testing.T) {
	q := &Query{
		FullCollectionName: "test.$cmd",
		BatchSize:           -1,
		Selector:            doc.MustDocument(doc.NewInt32("ping", 1)),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, q, 42, 0, 0))

	h, body, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, OpQuery, h.OpCode)
	require.Equal(t, int32(42), h.RequestID)
	require.Equal(t, int(h.MessageLength)-HeaderSize, len(body))
}

func TestDecodeReplyRoundTrip(t *testing.T) {
	reply := &Reply{
		Flags:        ReplyFlagAwaitCapable,
		CursorID:     123456,
		StartingFrom: 0,
		Documents: []*doc.Document{
			doc.MustDocument(doc.NewInt32("ok", 1)),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, reply, 1, 42, 0))

	got, err := ReadReply(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(42), got.ResponseTo)
	require.True(t, got.AwaitCapable())
	require.False(t, got.QueryFailed())
	require.Equal(t, int64(123456), got.CursorID)
	require.Len(t, got.Documents, 1)
}

func TestEncodeRejectsOversizeMessage(t *testing.T) {
	big := make([]byte, 100)
	insert := &Insert{
		FullCollectionName: "test.coll",
		Documents:           []*doc.Document{doc.MustDocument(doc.NewBinary("b", 0, big))},
	}
	_, err := Encode(nil, insert, 1, 0, 50)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestCommandFraming(t *testing.T) {
	cmd := NewCommand("test", doc.MustDocument(doc.NewInt32("isMaster", 1)))
	require.Equal(t, "test.$cmd", cmd.FullCollectionName)
	require.Equal(t, int32(-1), cmd.BatchSize)
}
