// Package wire implements the message envelope: the 16-byte frame header
// and the per-op-code bodies (query, insert, update, delete, get-more,
// kill-cursors, reply, and the generic command built on top of query)
// that ride over a Connection's socket.
package wire

import "encoding/binary"

// HeaderSize is the fixed length of every frame's header.
const HeaderSize = 16

// OpCode identifies a message body's wire shape.
type OpCode int32

const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

func (op OpCode) String() string {
	switch op {
	case OpReply:
		return "reply"
	case OpUpdate:
		return "update"
	case OpInsert:
		return "insert"
	case OpQuery:
		return "query"
	case OpGetMore:
		return "getMore"
	case OpDelete:
		return "delete"
	case OpKillCursors:
		return "killCursors"
	default:
		return "unknown"
	}
}

// Header is the 16-byte frame prefix on every message, request or reply.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

func (h Header) appendTo(dst []byte) []byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.OpCode))
	return append(dst, b[:]...)
}

// DecodeHeader parses a Header from the first HeaderSize bytes of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrShortFrame
	}
	return Header{
		MessageLength: int32(binary.LittleEndian.Uint32(data[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(data[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(data[8:12])),
		OpCode:        OpCode(binary.LittleEndian.Uint32(data[12:16])),
	}, nil
}
