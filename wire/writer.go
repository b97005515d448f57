package wire

import (
	"bufio"
	"io"
)

// WriteMessage frames m with requestID/responseTo and writes it to w,
// flushing if w is a *bufio.Writer. maxObjectSize <= 0 disables the
// size check (used for replies and probes that are never planner
// output).
func WriteMessage(w io.Writer, m Message, requestID, responseTo int32, maxObjectSize int) error {
	buf := getFrameBuffer()
	defer putFrameBuffer(buf)

	framed, err := Encode(*buf, m, requestID, responseTo, maxObjectSize)
	if err != nil {
		return err
	}
	*buf = framed

	if _, err := w.Write(framed); err != nil {
		return err
	}
	if bw, ok := w.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}
