// Package pickle implements the length-framed binary encoding used by the
// archive header. A framed value is a 4-byte little-endian payload size
// followed by the payload itself. Every field inside the payload is padded
// to a 4-byte boundary regardless of its natural width.
package pickle

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/packfs/asar/pkg/common"
)

const (
	headerSize = 4
	alignment  = 4

	// Writer buffers grow in 64-byte steps to keep reallocations rare.
	capacityGranularity = 64
)

func alignUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

// Writer accumulates aligned fields into a single framed payload. The size
// header is kept in sync after every write, so Bytes may be called at any
// point.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, headerSize, capacityGranularity)}
}

func (w *Writer) grow(n int) {
	need := len(w.buf) + n
	if need <= cap(w.buf) {
		return
	}
	newCap := 2 * cap(w.buf)
	if newCap < need {
		newCap = need
	}
	newCap = alignUp(newCap, capacityGranularity)
	grown := make([]byte, len(w.buf), newCap)
	copy(grown, w.buf)
	w.buf = grown
}

// writeData appends length bytes of data followed by zero padding up to the
// next 4-byte boundary, then refreshes the size header.
func (w *Writer) writeData(data []byte, length int) {
	padded := alignUp(length, alignment)
	w.grow(padded)
	off := len(w.buf)
	w.buf = w.buf[:off+padded]
	copy(w.buf[off:], data[:length])
	for i := off + length; i < off+padded; i++ {
		w.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(w.buf[:headerSize], uint32(len(w.buf)-headerSize))
}

// WriteBool encodes b as a 4-byte signed integer, 0 or 1.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteInt32(1)
	} else {
		w.WriteInt32(0)
	}
}

func (w *Writer) WriteInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	w.writeData(tmp[:], 4)
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.writeData(tmp[:], 4)
}

func (w *Writer) WriteInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	w.writeData(tmp[:], 8)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.writeData(tmp[:], 8)
}

// WriteFloat32 stores the raw bit pattern of v in a 4-byte slot.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 stores the raw bit pattern of v in an 8-byte slot.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString encodes s as a 4-byte signed byte count followed by the UTF-8
// bytes, padded to alignment.
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.writeData([]byte(s), len(s))
}

// WriteBytes appends a raw blob with no length prefix. The reader must know
// the length out of band.
func (w *Writer) WriteBytes(data []byte) {
	w.writeData(data, len(data))
}

// Bytes returns the framed value: size header plus payload, with no
// trailing slack.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader consumes aligned fields from a framed payload. Reads never cross
// the payload end declared by the size header, even when the underlying
// buffer is larger.
type Reader struct {
	buf []byte
	off int
	end int
}

// NewReader validates the size header of data and positions the cursor at
// the start of the payload.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerSize {
		return nil, common.ErrInsufficientData
	}
	size := int(binary.LittleEndian.Uint32(data[:headerSize]))
	if len(data)-headerSize < size {
		return nil, common.ErrInsufficientData
	}
	return &Reader{buf: data, off: headerSize, end: headerSize + size}, nil
}

// readData returns n bytes at the cursor and advances by the aligned width,
// clamped to the declared payload end.
func (r *Reader) readData(n int) ([]byte, error) {
	if n < 0 || r.end-r.off < n {
		return nil, common.ErrInsufficientData
	}
	data := r.buf[r.off : r.off+n]
	r.off += alignUp(n, alignment)
	if r.off > r.end {
		r.off = r.end
	}
	return data, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	data, err := r.readData(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	data, err := r.readData(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	data, err := r.readData(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	data, err := r.readData(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadString reads a length-prefixed UTF-8 string. A negative length or
// invalid UTF-8 payload fails with ErrInvalidString.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", common.ErrInvalidString
	}
	data, err := r.readData(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", common.ErrInvalidString
	}
	return string(data), nil
}

// ReadBytes reads a raw blob of n bytes written by WriteBytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.readData(n)
}
