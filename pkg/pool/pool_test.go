package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPools_Buffer(t *testing.T) {
	buf := Global.GetBuffer()
	buf.WriteString("payload")
	Global.PutBuffer(buf)

	again := Global.GetBuffer()
	assert.Zero(t, again.Len())
	Global.PutBuffer(again)
}

func TestBufferPools_DropsOversizedBuffer(t *testing.T) {
	p := &BufferPools{}
	p.bufferPool.New = func() interface{} { return new(bytes.Buffer) }

	big := bytes.NewBuffer(make([]byte, 0, maxPooledBufferSize+1))
	p.PutBuffer(big)

	assert.NotSame(t, big, p.GetBuffer())
}

func TestBufferPools_ByteSlice(t *testing.T) {
	b := Global.GetByteSlice()
	*b = append(*b, 1, 2, 3)
	Global.PutByteSlice(b)

	again := Global.GetByteSlice()
	assert.Empty(t, *again)
	Global.PutByteSlice(again)
}
