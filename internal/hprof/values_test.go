package hprof

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadValue_RoundTrip covers property 5: encoding a value at its
// canonical width and re-reading via ReadValue yields the original.
func TestReadValue_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tag  BasicType
		enc  func(*bytes.Buffer)
		want Value
	}{
		{"object", TypeObject, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, uint64(0xCAFEBABE))
		}, Value{Type: TypeObject, Object: 0xCAFEBABE}},
		{"boolean-true", TypeBoolean, func(b *bytes.Buffer) { b.WriteByte(1) }, Value{Type: TypeBoolean, Bool: true}},
		{"boolean-false", TypeBoolean, func(b *bytes.Buffer) { b.WriteByte(0) }, Value{Type: TypeBoolean, Bool: false}},
		{"char", TypeChar, func(b *bytes.Buffer) { binary.Write(b, binary.BigEndian, uint16('x')) }, Value{Type: TypeChar, Char: 'x'}},
		{"float", TypeFloat, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, math.Float32bits(3.5))
		}, Value{Type: TypeFloat, Float: 3.5}},
		{"double", TypeDouble, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, math.Float64bits(-2.25))
		}, Value{Type: TypeDouble, Double: -2.25}},
		{"byte", TypeByte, func(b *bytes.Buffer) { b.WriteByte(0xFE) }, Value{Type: TypeByte, Byte: -2}},
		{"short", TypeShort, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, uint16(0xFFFE))
		}, Value{Type: TypeShort, Short: -2}},
		{"int", TypeInt, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, int32(-100))
		}, Value{Type: TypeInt, Int: -100}},
		{"long", TypeLong, func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, int64(-100000))
		}, Value{Type: TypeLong, Long: -100000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc.enc(&buf)

			r := NewReader(&buf)
			r.SetIDSize(8)
			got, err := ReadValue(r, tc.tag)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadValue_UnknownTag(t *testing.T) {
	var buf bytes.Buffer
	r := NewReader(&buf)

	_, err := ReadValue(r, BasicType(0x99))
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonUnknownBasicType, fe.Reason)
}
