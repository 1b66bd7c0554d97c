package packet

import (
	"encoding/binary"
	"errors"
)

// ErrShortPacket is reported by Reader.Err after a read ran past the payload.
var ErrShortPacket = errors.New("packet shorter than its fields")

// Reader decodes client packet fields in wire order. Reads past the end of
// the payload return zero values and mark the reader short; handlers check
// Err once after reading every field.
type Reader struct {
	data  []byte
	off   int
	short bool
}

// NewReader wraps a frame payload. The opcode byte is skipped.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// take returns the next n bytes, or nil when fewer remain.
func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.short = true
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) ReadH() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) ReadD() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// ReadFixed decodes a coordinate sent as hundredths.
func (r *Reader) ReadFixed() float64 {
	return float64(r.ReadD()) / FixedScale
}

// ReadS reads a NUL-terminated string in the wire charset. A missing
// terminator consumes the rest of the payload.
func (r *Reader) ReadS() string {
	if r.off >= len(r.data) {
		r.short = true
		return ""
	}
	rest := r.data[r.off:]
	end := len(rest)
	for i, c := range rest {
		if c == 0 {
			end = i
			break
		}
	}
	r.off += end
	if end < len(rest) {
		r.off++
	}
	return decodeString(rest[:end])
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err returns ErrShortPacket if any read ran out of payload.
func (r *Reader) Err() error {
	if r.short {
		return ErrShortPacket
	}
	return nil
}
