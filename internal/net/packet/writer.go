package packet

import (
	"encoding/binary"
	"math"
)

// FixedScale converts coordinates to integer hundredths on the wire.
const FixedScale = 100

// Writer appends server packet fields, little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// NewWriterWithOpcode starts a packet with its opcode byte.
func NewWriterWithOpcode(opcode byte) *Writer {
	w := NewWriter()
	w.buf = append(w.buf, opcode)
	return w
}

func (w *Writer) WriteC(v byte) { w.buf = append(w.buf, v) }

func (w *Writer) WriteH(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) WriteD(v int32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v)) }

func (w *Writer) WriteQ(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// WriteFixed rounds v to hundredths.
func (w *Writer) WriteFixed(v float64) {
	w.WriteD(int32(math.Round(v * FixedScale)))
}

// WriteS appends s in the wire charset followed by a NUL.
func (w *Writer) WriteS(s string) {
	w.buf = append(append(w.buf, encodeString(s)...), 0)
}

// WriteLocation appends a block position as three D fields.
func (w *Writer) WriteLocation(x, y, z int32) {
	w.WriteD(x)
	w.WriteD(y)
	w.WriteD(z)
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }
