package wire

import (
	"encoding/binary"

	"github.com/pior/docdb/doc"
)

// Query flag bits (OP_QUERY).
const (
	QueryFlagTailable        int32 = 2
	QueryFlagSlaveOK         int32 = 4
	QueryFlagOplogReplay     int32 = 8
	QueryFlagNoCursorTimeout int32 = 16
	QueryFlagAwaitData       int32 = 32
	QueryFlagExhaust         int32 = 64
	QueryFlagPartial         int32 = 128
)

// Insert flag bits (OP_INSERT).
const InsertFlagContinueOnError int32 = 1

// Update flag bits (OP_UPDATE).
const (
	UpdateFlagUpsert int32 = 1
	UpdateFlagMulti  int32 = 2
)

// Delete flag bits (OP_DELETE).
const DeleteFlagSingleRemove int32 = 1

// Reply flag bits (OP_REPLY).
const (
	ReplyFlagCursorNotFound   int32 = 1
	ReplyFlagQueryFailure     int32 = 2
	ReplyFlagShardConfigStale int32 = 4
	ReplyFlagAwaitCapable     int32 = 8
)

// Message is anything that can be framed with a Header and written to a
// Connection's socket.
type Message interface {
	OpCode() OpCode
	// BodyLen returns the encoded body length, excluding the header.
	BodyLen() int
	// appendBody appends the encoded body (without the header) to dst.
	appendBody(dst []byte) []byte
}

// Encode frames m with requestID and responseTo and appends the result
// to dst. It returns ErrMessageTooLarge if the frame (header + body)
// would exceed maxObjectSize; a maxObjectSize <= 0 disables the check.
func Encode(dst []byte, m Message, requestID, responseTo int32, maxObjectSize int) ([]byte, error) {
	total := HeaderSize + m.BodyLen()
	if maxObjectSize > 0 && total > maxObjectSize {
		return dst, ErrMessageTooLarge
	}
	h := Header{MessageLength: int32(total), RequestID: requestID, ResponseTo: responseTo, OpCode: m.OpCode()}
	dst = h.appendTo(dst)
	dst = m.appendBody(dst)
	return dst, nil
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

// Query is the OP_QUERY body. A generic command is a Query with
// BatchSize == -1 over the pseudo-collection "<db>.$cmd".
type Query struct {
	Flags                int32
	FullCollectionName   string
	Skip                 int32
	BatchSize            int32
	Selector             *doc.Document
	ReturnFieldsSelector *doc.Document
}

// NewCommand builds the generic command framing: a Query over
// "<db>.$cmd" with numberToReturn = -1.
func NewCommand(db string, command *doc.Document) *Query {
	return &Query{
		FullCollectionName: db + ".$cmd",
		BatchSize:          -1,
		Selector:           command,
	}
}

func (q *Query) OpCode() OpCode { return OpQuery }

func (q *Query) BodyLen() int {
	n := 4 + len(q.FullCollectionName) + 1 + 4 + 4 + q.Selector.Size()
	if q.ReturnFieldsSelector != nil {
		n += q.ReturnFieldsSelector.Size()
	}
	return n
}

func (q *Query) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, q.Flags)
	dst = appendCString(dst, q.FullCollectionName)
	dst = appendInt32(dst, q.Skip)
	dst = appendInt32(dst, q.BatchSize)
	dst = doc.EncodeAppend(dst, q.Selector)
	if q.ReturnFieldsSelector != nil {
		dst = doc.EncodeAppend(dst, q.ReturnFieldsSelector)
	}
	return dst
}

// Insert is the OP_INSERT body.
type Insert struct {
	Flags              int32
	FullCollectionName string
	Documents          []*doc.Document
}

func (m *Insert) OpCode() OpCode { return OpInsert }

func (m *Insert) BodyLen() int {
	n := 4 + len(m.FullCollectionName) + 1
	for _, d := range m.Documents {
		n += d.Size()
	}
	return n
}

func (m *Insert) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, m.Flags)
	dst = appendCString(dst, m.FullCollectionName)
	for _, d := range m.Documents {
		dst = doc.EncodeAppend(dst, d)
	}
	return dst
}

// Update is the OP_UPDATE body.
type Update struct {
	FullCollectionName string
	Flags              int32
	Selector           *doc.Document
	Update             *doc.Document
}

func (m *Update) OpCode() OpCode { return OpUpdate }

func (m *Update) BodyLen() int {
	return 4 + len(m.FullCollectionName) + 1 + 4 + m.Selector.Size() + m.Update.Size()
}

func (m *Update) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, m.FullCollectionName)
	dst = appendInt32(dst, m.Flags)
	dst = doc.EncodeAppend(dst, m.Selector)
	dst = doc.EncodeAppend(dst, m.Update)
	return dst
}

// Delete is the OP_DELETE body.
type Delete struct {
	FullCollectionName string
	Flags              int32
	Selector           *doc.Document
}

func (m *Delete) OpCode() OpCode { return OpDelete }

func (m *Delete) BodyLen() int {
	return 4 + len(m.FullCollectionName) + 1 + 4 + m.Selector.Size()
}

func (m *Delete) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, m.FullCollectionName)
	dst = appendInt32(dst, m.Flags)
	dst = doc.EncodeAppend(dst, m.Selector)
	return dst
}

// GetMore is the OP_GET_MORE body.
type GetMore struct {
	FullCollectionName string
	BatchSize          int32
	CursorID           int64
}

func (m *GetMore) OpCode() OpCode { return OpGetMore }

func (m *GetMore) BodyLen() int {
	return 4 + len(m.FullCollectionName) + 1 + 4 + 8
}

func (m *GetMore) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, 0)
	dst = appendCString(dst, m.FullCollectionName)
	dst = appendInt32(dst, m.BatchSize)
	dst = appendInt64(dst, m.CursorID)
	return dst
}

// KillCursors is the OP_KILL_CURSORS body.
type KillCursors struct {
	CursorIDs []int64
}

func (m *KillCursors) OpCode() OpCode { return OpKillCursors }

func (m *KillCursors) BodyLen() int {
	return 4 + 4 + 8*len(m.CursorIDs)
}

func (m *KillCursors) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, 0)
	dst = appendInt32(dst, int32(len(m.CursorIDs)))
	for _, id := range m.CursorIDs {
		dst = appendInt64(dst, id)
	}
	return dst
}

// Reply is the decoded OP_REPLY body.
type Reply struct {
	ResponseTo   int32
	Flags        int32
	CursorID     int64
	StartingFrom int32
	Documents    []*doc.Document
}

func (r *Reply) CursorNotFound() bool   { return r.Flags&ReplyFlagCursorNotFound != 0 }
func (r *Reply) QueryFailed() bool      { return r.Flags&ReplyFlagQueryFailure != 0 }
func (r *Reply) ShardConfigStale() bool { return r.Flags&ReplyFlagShardConfigStale != 0 }
func (r *Reply) AwaitCapable() bool     { return r.Flags&ReplyFlagAwaitCapable != 0 }

func (r *Reply) OpCode() OpCode { return OpReply }

func (r *Reply) BodyLen() int {
	n := 4 + 8 + 4 + 4
	for _, d := range r.Documents {
		n += d.Size()
	}
	return n
}

func (r *Reply) appendBody(dst []byte) []byte {
	dst = appendInt32(dst, r.Flags)
	dst = appendInt64(dst, r.CursorID)
	dst = appendInt32(dst, r.StartingFrom)
	dst = appendInt32(dst, int32(len(r.Documents)))
	for _, d := range r.Documents {
		dst = doc.EncodeAppend(dst, d)
	}
	return dst
}

// DecodeBody parses a message body given its op-code, not including the
// header. Only OpReply is expected from the server in this client's
// request/response model, and it is the only op-code decoded here; every
// other op-code returns ErrUnknownOpCode.
func DecodeBody(op OpCode, body []byte) (Message, error) {
	switch op {
	case OpReply:
		return decodeReply(body)
	default:
		return nil, ErrUnknownOpCode
	}
}

func decodeReply(body []byte) (*Reply, error) {
	if len(body) < 20 {
		return nil, ErrShortFrame
	}
	flags := int32(binary.LittleEndian.Uint32(body[0:4]))
	cursorID := int64(binary.LittleEndian.Uint64(body[4:12]))
	startingFrom := int32(binary.LittleEndian.Uint32(body[12:16]))
	count := int32(binary.LittleEndian.Uint32(body[16:20]))

	rest := body[20:]
	docs := make([]*doc.Document, 0, count)
	for i := int32(0); i < count; i++ {
		d, n, err := doc.Decode(rest)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
		rest = rest[n:]
	}

	return &Reply{Flags: flags, CursorID: cursorID, StartingFrom: startingFrom, Documents: docs}, nil
}
