package count

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hprofdecode/internal/hprof"
)

func TestConsumer_TalliesRecords(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("JAVA PROFILE 1.0.2")
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, uint32(8))
	binary.Write(&buf, binary.BigEndian, uint64(0))

	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint64(1))
	body.WriteByte('A')
	buf.WriteByte(byte(hprof.TagString))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(len(body.Bytes())))
	buf.Write(body.Bytes())

	c := New()
	dec := hprof.NewDecoder(&buf, c)
	require.NoError(t, dec.Run(context.Background()))

	sum := c.Summary()
	assert.EqualValues(t, 1, sum.Records["header"])
	assert.EqualValues(t, 1, sum.Records["string"])
}
