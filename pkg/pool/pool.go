package pool

import (
	"bytes"
	"sync"
)

// Буферы больше этого размера не возвращаются в пул
const maxPooledBufferSize = 1 << 20

// BufferPools пулы буферов для переиспользования при экспорте и кодировании фиксов
type BufferPools struct {
	bufferPool    sync.Pool
	byteSlicePool sync.Pool
}

// Global пулы буферов
var Global = &BufferPools{
	bufferPool: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	},
	byteSlicePool: sync.Pool{
		New: func() interface{} {
			b := make([]byte, 0, 64)
			return &b
		},
	},
}

// GetBuffer получает пустой буфер из пула
func (p *BufferPools) GetBuffer() *bytes.Buffer {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer возвращает буфер в пул
func (p *BufferPools) PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	p.bufferPool.Put(buf)
}

// GetByteSlice получает слайс нулевой длины из пула
func (p *BufferPools) GetByteSlice() *[]byte {
	b := p.byteSlicePool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// PutByteSlice возвращает слайс в пул
func (p *BufferPools) PutByteSlice(b *[]byte) {
	if cap(*b) > maxPooledBufferSize {
		return
	}
	p.byteSlicePool.Put(b)
}
