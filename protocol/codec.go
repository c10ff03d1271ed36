package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrTruncated = errors.New("read past end of buffer")

var be = binary.BigEndian

// FloatToNet returns the network representation of v: its IEEE-754 bit
// pattern in network byte order. FloatFromNet is the inverse.
func FloatToNet(v float32) [4]byte {
	var b [4]byte
	be.PutUint32(b[:], math.Float32bits(v))
	return b
}

func FloatFromNet(b [4]byte) float32 {
	return math.Float32frombits(be.Uint32(b[:]))
}

// Writer appends values to a growable buffer. The Put*At variants overwrite
// bytes at an explicit offset and grow the buffer when needed.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) grow(offset, n int) []byte {
	if end := offset + n; end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	return w.buf[offset : offset+n]
}

func (w *Writer) PutU8At(offset int, v uint8) {
	w.grow(offset, 1)[0] = v
}

func (w *Writer) PutU16At(offset int, v uint16) {
	be.PutUint16(w.grow(offset, 2), v)
}

func (w *Writer) PutU32At(offset int, v uint32) {
	be.PutUint32(w.grow(offset, 4), v)
}

func (w *Writer) PutF32At(offset int, v float32) {
	b := FloatToNet(v)
	copy(w.grow(offset, 4), b[:])
}

func (w *Writer) PutStringAt(offset int, v string) {
	w.PutU32At(offset, uint32(len(v)))
	copy(w.grow(offset+4, len(v)), v)
}

func (w *Writer) U8(v uint8)    { w.PutU8At(len(w.buf), v) }
func (w *Writer) U16(v uint16)  { w.PutU16At(len(w.buf), v) }
func (w *Writer) U32(v uint32)  { w.PutU32At(len(w.buf), v) }
func (w *Writer) I8(v int8)     { w.U8(uint8(v)) }
func (w *Writer) I16(v int16)   { w.U16(uint16(v)) }
func (w *Writer) I32(v int32)   { w.U32(uint32(v)) }
func (w *Writer) F32(v float32) { w.PutF32At(len(w.buf), v) }
func (w *Writer) Str(v string)  { w.PutStringAt(len(w.buf), v) }
func (w *Writer) Bool(v bool)   { w.U8(boolByte(v)) }

func (w *Writer) Vector(x, y, z float32) {
	w.F32(x)
	w.F32(y)
	w.F32(z)
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// Reader consumes values from the front of a buffer. The first failed read
// is sticky: later reads return zero values and Err reports the failure.
type Reader struct {
	buf    []byte
	offset int
	err    error
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Offset() int {
	return r.offset
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

func (r *Reader) next(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if r.Remaining() < n {
		r.err = fmt.Errorf("%s at offset %d: %w", field, r.offset, ErrTruncated)
		return nil
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.next(1, "u8")
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.next(2, "u16")
	if b == nil {
		return 0
	}
	return be.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.next(4, "u32")
	if b == nil {
		return 0
	}
	return be.Uint32(b)
}

func (r *Reader) I8() int8   { return int8(r.U8()) }
func (r *Reader) I16() int16 { return int16(r.U16()) }
func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) F32() float32 {
	b := r.next(4, "f32")
	if b == nil {
		return 0
	}
	return FloatFromNet([4]byte(b))
}

func (r *Reader) Bool() bool {
	return r.U8() != 0
}

func (r *Reader) Str() string {
	n := r.U32()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(r.Remaining()) {
		r.err = fmt.Errorf("string of %d bytes at offset %d: %w", n, r.offset, ErrTruncated)
		return ""
	}
	return string(r.next(int(n), "string"))
}
