package hprof

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReadID(t *testing.T) {
	t.Run("4-byte", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(0x12345678))

		r := NewReader(&buf)
		r.SetIDSize(4)

		id, err := r.ReadID()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x12345678), id)
	})

	t.Run("8-byte", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint64(0x123456789ABCDEF0))

		r := NewReader(&buf)
		r.SetIDSize(8)

		id, err := r.ReadID()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x123456789ABCDEF0), id)
	})
}

func TestReader_ReadNullTerminatedASCII(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("hello")
	buf.WriteByte(0)
	buf.WriteString("garbage-after-terminator")

	r := NewReader(&buf)
	s, err := r.ReadNullTerminatedASCII()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestReader_PushPopFrame_Mismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2, 3, 4, 5})

	r := NewReader(&buf)
	r.PushFrame(5)
	_, err := r.ReadExact(3) // under-consume the frame on purpose
	require.NoError(t, err)

	err = r.PopFrame(int(TagString))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonFrameLengthMismatch, fe.Reason)
}

func TestReader_RemainingInFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2, 3, 4, 5, 6})

	r := NewReader(&buf)
	r.PushFrame(6)
	assert.Equal(t, int64(6), r.RemainingInFrame())
	_, err := r.ReadExact(4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.RemainingInFrame())
}

func TestReader_Skip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2, 3, 4, 5})

	r := NewReader(&buf)
	require.NoError(t, r.Skip(3))
	b, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(4), b)
}

func TestReader_TruncatedRead(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2})

	r := NewReader(&buf)
	_, err := r.ReadU32()
	require.Error(t, err)
	assert.True(t, IsTruncated(err))
}
