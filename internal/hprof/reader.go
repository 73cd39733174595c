package hprof

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Reader provides buffered, big-endian, identifier-width-aware reading of
// an HPROF byte stream. It advances a single logical cursor; there is no
// peek or seek. Callers establish bounded frames with PushFrame/PopFrame to
// validate that a decoder consumed exactly the bytes it was given.
type Reader struct {
	r      *bufio.Reader
	idSize int
	pos    int64
	buf    [8]byte

	frameEnds []int64
}

// NewReader wraps r for HPROF decoding. The identifier size defaults to 8
// and must be set via SetIDSize once the header has been read.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:      bufio.NewReaderSize(r, 64*1024),
		idSize: 8,
	}
}

// SetIDSize sets the identifier width in bytes (4 or 8).
func (r *Reader) SetIDSize(size int) { r.idSize = size }

// IDSize returns the currently configured identifier width.
func (r *Reader) IDSize() int { return r.idSize }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.pos }

func (r *Reader) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &TruncatedStreamError{Offset: r.pos, Err: err}
	}
	return &IOError{Err: err}
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, r.wrapErr(err)
	}
	r.pos += int64(n)
	return b, nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, r.wrapErr(err)
	}
	r.pos++
	return b, nil
}

// ReadBool reads one byte: 0 is false, nonzero is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadI32 reads a big-endian two's-complement int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 reads a big-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadF32 reads a big-endian IEEE-754 single-precision float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads a big-endian IEEE-754 double-precision float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadID reads an identifier at the currently configured width, returned
// zero-extended to 64 bits.
func (r *Reader) ReadID() (uint64, error) {
	if r.idSize == 4 {
		v, err := r.ReadU32()
		return uint64(v), err
	}
	return r.ReadU64()
}

// ReadExact returns the next n bytes.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, r.wrapErr(err)
	}
	r.pos += int64(n)
	return buf, nil
}

// Skip discards n bytes without returning them.
func (r *Reader) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	discarded, err := r.r.Discard(int(n))
	r.pos += int64(discarded)
	if err != nil {
		return r.wrapErr(err)
	}
	return nil
}

// ReadNullTerminatedASCII reads bytes up to (not including) the next 0x00.
func (r *Reader) ReadNullTerminatedASCII() (string, error) {
	var out []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
}

// PushFrame establishes a bounded frame of length bytes starting at the
// current cursor. RemainingInFrame reports bytes left within the innermost
// pushed frame.
func (r *Reader) PushFrame(length uint32) {
	r.frameEnds = append(r.frameEnds, r.pos+int64(length))
}

// PopFrame closes the innermost frame, returning a FrameLengthMismatch
// FormatError if the cursor did not land exactly on the frame's declared
// end.
func (r *Reader) PopFrame(tag int) error {
	n := len(r.frameEnds)
	end := r.frameEnds[n-1]
	r.frameEnds = r.frameEnds[:n-1]
	if r.pos != end {
		return &FormatError{
			Reason: ReasonFrameLengthMismatch,
			Tag:    tag,
			Offset: r.pos,
		}
	}
	return nil
}

// RemainingInFrame returns the number of bytes left in the innermost pushed
// frame. It is undefined (returns 0) when no frame is active.
func (r *Reader) RemainingInFrame() int64 {
	if len(r.frameEnds) == 0 {
		return 0
	}
	end := r.frameEnds[len(r.frameEnds)-1]
	remaining := end - r.pos
	if remaining < 0 {
		return 0
	}
	return remaining
}
