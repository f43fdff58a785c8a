package element

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxBufferBytes caps a single output buffer. At 22.05 kHz mono float32
// this is roughly 25 minutes of audio for one utterance; anything larger
// indicates a runaway backend rather than a legitimate result.
const maxBufferBytes = 128 << 20

// Buffer is one opaque byte-bearing unit flowing through the pipeline.
// Buffers are created per transform call and never cached or batched.
type Buffer struct {
	data []byte
}

func (b *Buffer) Bytes() []byte { return b.data }
func (b *Buffer) Len() int      { return len(b.data) }

// NewAudioBuffer encodes samples as sequential little-endian 32-bit floats
// with no header and no padding, into a buffer of exactly that byte length.
func NewAudioBuffer(samples []float32) (*Buffer, error) {
	size := len(samples) * 4
	if size > maxBufferBytes {
		return nil, fmt.Errorf("output buffer of %d bytes exceeds limit of %d", size, maxBufferBytes)
	}
	data := make([]byte, size)
	for i, sample := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(sample))
	}
	return &Buffer{data: data}, nil
}
