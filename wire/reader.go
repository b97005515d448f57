package wire

import "io"

// ReadFrame reads one framed message from r: the 16-byte header, then a
// body of exactly MessageLength-HeaderSize bytes. It is the Connection
// reader loop's single entry point into this package.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var hbuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		return Header{}, nil, err
	}

	h, err := DecodeHeader(hbuf[:])
	if err != nil {
		return Header{}, nil, err
	}
	if h.MessageLength < HeaderSize {
		return Header{}, nil, ErrShortFrame
	}

	body := make([]byte, h.MessageLength-HeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, nil, err
	}

	return h, body, nil
}

// ReadReply is a convenience wrapper around ReadFrame for the one
// op-code this client ever expects to receive.
func ReadReply(r io.Reader) (*Reply, error) {
	h, body, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	if h.OpCode != OpReply {
		return nil, ErrUnknownOpCode
	}
	reply, err := decodeReply(body)
	if err != nil {
		return nil, err
	}
	reply.ResponseTo = h.ResponseTo
	return reply, nil
}
