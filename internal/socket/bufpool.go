package socket

import "sync"

// chunkPool reuses the byte slices used to read a chunk off a destination
// socket, so the target→carrier pump does not allocate on every read.
var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 16*1024)
		return &buf
	},
}

func getChunkBuf() *[]byte {
	return chunkPool.Get().(*[]byte)
}

func putChunkBuf(b *[]byte) {
	chunkPool.Put(b)
}
