package wire

import "errors"

// ErrShortFrame is returned when fewer than HeaderSize bytes are handed
// to DecodeHeader, when a header declares a length shorter than the
// header itself, or when a reply body is too short for its fixed fields.
// A frame cut off mid-body surfaces as the reader's own error instead.
var ErrShortFrame = errors.New("docdb/wire: short frame")

// ErrMessageTooLarge is returned when encoding a message would exceed
// the server-reported maxBsonObjectSize.
var ErrMessageTooLarge = errors.New("docdb/wire: message exceeds maxBsonObjectSize")

// ErrUnknownOpCode is returned when decoding a reply whose op-code this
// package does not recognize.
var ErrUnknownOpCode = errors.New("docdb/wire: unknown op-code")
