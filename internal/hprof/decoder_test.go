package hprof

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler records every callback it receives, in order, so tests can
// assert on both the sequence and the payloads.
type captureHandler struct {
	NoopHandler
	events []string
	header Header
	strs   []StringRecord
	roots  []RootStickyClass
	inst   []InstanceDump
	prims  []PrimitiveArrayDump
}

func (c *captureHandler) Header(h Header) error {
	c.header = h
	c.events = append(c.events, "header")
	return nil
}
func (c *captureHandler) String(r StringRecord) error {
	c.strs = append(c.strs, r)
	c.events = append(c.events, "string")
	return nil
}
func (c *captureHandler) HeapDumpBegin(bool) error {
	c.events = append(c.events, "heap_dump")
	return nil
}
func (c *captureHandler) HeapDumpEnd() error {
	c.events = append(c.events, "heap_dump_end")
	return nil
}
func (c *captureHandler) RootStickyClass(r RootStickyClass) error {
	c.roots = append(c.roots, r)
	c.events = append(c.events, "root_sticky_class")
	return nil
}
func (c *captureHandler) InstanceDump(r InstanceDump) error {
	c.inst = append(c.inst, r)
	c.events = append(c.events, "instance_dump")
	return nil
}
func (c *captureHandler) PrimitiveArrayDump(r PrimitiveArrayDump) error {
	c.prims = append(c.prims, r)
	c.events = append(c.events, "prim_array_dump")
	return nil
}

func writeHeader(buf *bytes.Buffer, idSize uint32, timestamp uint64) {
	buf.WriteString("JAVA PROFILE 1.0.2")
	buf.WriteByte(0)
	binary.Write(buf, binary.BigEndian, idSize)
	binary.Write(buf, binary.BigEndian, timestamp)
}

func writeFrame(buf *bytes.Buffer, tag RecordTag, tsDelta uint32, body []byte) {
	buf.WriteByte(byte(tag))
	binary.Write(buf, binary.BigEndian, tsDelta)
	binary.Write(buf, binary.BigEndian, uint32(len(body)))
	buf.Write(body)
}

// TestDecoder_S1_MinimalStream covers scenario S1 from the decode
// properties: a header followed by a single string record reaches EOF
// cleanly with exactly the expected callbacks.
func TestDecoder_S1_MinimalStream(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint64(1))
	body.WriteByte('A')
	writeFrame(&buf, TagString, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"header", "string"}, h.events)
	assert.Equal(t, "JAVA PROFILE 1.0.2", h.header.FormatName)
	assert.Equal(t, 8, h.header.IDSize)
	require.Len(t, h.strs, 1)
	assert.Equal(t, uint64(1), h.strs[0].ID)
	assert.Equal(t, "A", h.strs[0].Text)
}

// TestDecoder_S2_UnknownTagSkip covers scenario S2: an unrecognized
// top-level tag is skipped without firing a callback, and decoding
// continues normally afterward.
func TestDecoder_S2_UnknownTagSkip(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)
	writeFrame(&buf, RecordTag(0x7F), 0, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint64(2))
	body.WriteByte('B')
	writeFrame(&buf, TagString, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"header", "string"}, h.events)
	require.Len(t, h.strs, 1)
	assert.Equal(t, "B", h.strs[0].Text)
}

// TestDecoder_S3_FrameLengthMismatch covers scenario S3: a string frame
// whose declared length is too short for the id itself fails as
// FrameLengthMismatch, since reading the id runs past the declared body.
func TestDecoder_S3_FrameLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)
	// declared length 5, but an 8-byte id-size stream needs at least 8.
	buf.WriteByte(byte(TagString))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(5))
	buf.Write([]byte{0, 0, 0, 0, 0})

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonFrameLengthMismatch, fe.Reason)
}

// TestDecoder_S4_HeapDumpContainer covers scenario S4: a heap dump
// container's sub-records are decoded in order and the container's begin
// and end notifications bracket them.
func TestDecoder_S4_HeapDumpContainer(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer
	body.WriteByte(byte(HeapTagRootStickyClass))
	binary.Write(&body, binary.BigEndian, uint64(0x2A))

	body.WriteByte(byte(HeapTagClassDump))
	binary.Write(&body, binary.BigEndian, uint64(0x100)) // class object id
	binary.Write(&body, binary.BigEndian, uint32(0))     // stack trace serial
	binary.Write(&body, binary.BigEndian, uint64(0))     // super class id
	binary.Write(&body, binary.BigEndian, uint64(0))     // class loader id
	binary.Write(&body, binary.BigEndian, uint64(0))     // signers id
	binary.Write(&body, binary.BigEndian, uint64(0))     // protection domain id
	binary.Write(&body, binary.BigEndian, uint64(0))     // reserved 1
	binary.Write(&body, binary.BigEndian, uint64(0))     // reserved 2
	binary.Write(&body, binary.BigEndian, uint32(16))    // instance size
	binary.Write(&body, binary.BigEndian, uint16(0))     // constant pool count
	binary.Write(&body, binary.BigEndian, uint16(0))     // static field count
	binary.Write(&body, binary.BigEndian, uint16(1))     // instance field count
	binary.Write(&body, binary.BigEndian, uint64(0x200)) // field name id
	body.WriteByte(byte(TypeInt))                        // field type

	body.WriteByte(byte(HeapTagInstanceDump))
	binary.Write(&body, binary.BigEndian, uint64(0x300)) // object id
	binary.Write(&body, binary.BigEndian, uint32(0))     // stack trace serial
	binary.Write(&body, binary.BigEndian, uint64(0x100)) // class object id
	binary.Write(&body, binary.BigEndian, uint32(4))     // field bytes length
	binary.Write(&body, binary.BigEndian, int32(42))     // the one INT field

	writeFrame(&buf, TagHeapDump, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"header", "heap_dump", "root_sticky_class", "instance_dump", "heap_dump_end"}, h.events)
	require.Len(t, h.roots, 1)
	assert.Equal(t, uint64(0x2A), h.roots[0].ObjectID)
	require.Len(t, h.inst, 1)
	require.Len(t, h.inst[0].Fields, 1)
	assert.Equal(t, int32(42), h.inst[0].Fields[0].Value.Int)
}

// TestDecoder_S5_PrimitiveArray covers scenario S5.
func TestDecoder_S5_PrimitiveArray(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer
	body.WriteByte(byte(HeapTagPrimArrayDump))
	binary.Write(&body, binary.BigEndian, uint64(1)) // array object id
	binary.Write(&body, binary.BigEndian, uint32(0)) // stack trace serial
	binary.Write(&body, binary.BigEndian, uint32(3)) // element count
	body.WriteByte(byte(TypeInt))
	binary.Write(&body, binary.BigEndian, int32(1))
	binary.Write(&body, binary.BigEndian, int32(2))
	binary.Write(&body, binary.BigEndian, int32(3))

	writeFrame(&buf, TagHeapDump, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, h.prims, 1)
	assert.Equal(t, uint64(1), h.prims[0].ArrayObjectID)
	assert.Equal(t, TypeInt, h.prims[0].ElementType)
	require.Len(t, h.prims[0].Elements, 3)
	assert.Equal(t, int32(1), h.prims[0].Elements[0].Int)
	assert.Equal(t, int32(2), h.prims[0].Elements[1].Int)
	assert.Equal(t, int32(3), h.prims[0].Elements[2].Int)
}

// TestDecoder_S6_Truncation covers scenario S6: a stream that ends mid-body
// yields TruncatedStreamError, never a partial delivery.
func TestDecoder_S6_Truncation(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	buf.WriteByte(byte(TagString))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(9))
	buf.Write([]byte{0, 0, 0}) // only 3 of the 9 declared body bytes

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.Error(t, err)
	assert.True(t, IsTruncated(err))
	assert.Empty(t, h.strs)
}

// TestDecoder_IDSizeFlexibility covers property 3: identifiers are stored
// as u64 regardless of the header's declared width.
func TestDecoder_IDSizeFlexibility(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 4, 0)

	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint32(0x11223344))
	body.WriteByte('Z')
	writeFrame(&buf, TagString, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, h.strs, 1)
	assert.Equal(t, uint64(0x11223344), h.strs[0].ID)
}

// TestDecoder_UnknownHeapSubTagIsFatal covers the asymmetry between
// unknown top-level tags (skipped) and unknown heap sub-tags (fatal,
// since sub-records carry no length prefix to skip by).
func TestDecoder_UnknownHeapSubTagIsFatal(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer
	body.WriteByte(0x99) // not a recognized heap sub-tag

	writeFrame(&buf, TagHeapDump, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonUnknownHeapSubTag, fe.Reason)
}

// TestDecoder_InstanceFieldsCurrentClassFirst verifies that inherited
// fields are decoded current-class-first, then superclass, matching the
// actual byte layout the producer writes.
func TestDecoder_InstanceFieldsCurrentClassFirst(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer

	// superclass: one INT field
	body.WriteByte(byte(HeapTagClassDump))
	binary.Write(&body, binary.BigEndian, uint64(0x1)) // class object id
	binary.Write(&body, binary.BigEndian, uint32(0))
	binary.Write(&body, binary.BigEndian, uint64(0)) // super class id (none)
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint32(4))
	binary.Write(&body, binary.BigEndian, uint16(0))
	binary.Write(&body, binary.BigEndian, uint16(0))
	binary.Write(&body, binary.BigEndian, uint16(1))
	binary.Write(&body, binary.BigEndian, uint64(0xA1)) // super field name
	body.WriteByte(byte(TypeInt))

	// subclass: one LONG field, extends 0x1
	body.WriteByte(byte(HeapTagClassDump))
	binary.Write(&body, binary.BigEndian, uint64(0x2)) // class object id
	binary.Write(&body, binary.BigEndian, uint32(0))
	binary.Write(&body, binary.BigEndian, uint64(0x1)) // super class id
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint64(0))
	binary.Write(&body, binary.BigEndian, uint32(12))
	binary.Write(&body, binary.BigEndian, uint16(0))
	binary.Write(&body, binary.BigEndian, uint16(0))
	binary.Write(&body, binary.BigEndian, uint16(1))
	binary.Write(&body, binary.BigEndian, uint64(0xB1)) // sub field name
	body.WriteByte(byte(TypeLong))

	// instance of 0x2: LONG field bytes first (own class), then INT (superclass)
	body.WriteByte(byte(HeapTagInstanceDump))
	binary.Write(&body, binary.BigEndian, uint64(0x300))
	binary.Write(&body, binary.BigEndian, uint32(0))
	binary.Write(&body, binary.BigEndian, uint64(0x2))
	binary.Write(&body, binary.BigEndian, uint32(12)) // 8 (long) + 4 (int)
	binary.Write(&body, binary.BigEndian, int64(99))
	binary.Write(&body, binary.BigEndian, int32(7))

	writeFrame(&buf, TagHeapDump, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, h.inst, 1)
	require.Len(t, h.inst[0].Fields, 2)
	assert.Equal(t, uint64(0xB1), h.inst[0].Fields[0].NameID)
	assert.Equal(t, int64(99), h.inst[0].Fields[0].Value.Long)
	assert.Equal(t, uint64(0xA1), h.inst[0].Fields[1].NameID)
	assert.Equal(t, int32(7), h.inst[0].Fields[1].Value.Int)
}

func TestDecoder_MissingClassDumpIsFatal(t *testing.T) {
	var buf bytes.Buffer
	writeHeader(&buf, 8, 0)

	var body bytes.Buffer
	body.WriteByte(byte(HeapTagInstanceDump))
	binary.Write(&body, binary.BigEndian, uint64(0x300))
	binary.Write(&body, binary.BigEndian, uint32(0))
	binary.Write(&body, binary.BigEndian, uint64(0xDEAD)) // never dumped
	binary.Write(&body, binary.BigEndian, uint32(0))

	writeFrame(&buf, TagHeapDump, 0, body.Bytes())

	h := &captureHandler{}
	dec := NewDecoder(&buf, h)
	err := dec.Run(context.Background())

	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonMissingClassDump, fe.Reason)
}
