package wire

import "sync"

// frameBufferPool backs WriteMessage, reused across calls to avoid an
// allocation per outbound message on the hot insert/update path.
var frameBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

func getFrameBuffer() *[]byte {
	return frameBufferPool.Get().(*[]byte)
}

func putFrameBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	frameBufferPool.Put(buf)
}
