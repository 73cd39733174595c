package print

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hprofdecode/internal/hprof"
	"github.com/hprofdecode/pkg/utils"
)

func TestConsumer_NilLoggerFallsBackToNoop(t *testing.T) {
	c := New(nil)
	assert.NoError(t, c.Header(hprof.Header{FormatName: "JAVA PROFILE 1.0.2", IDSize: 8}))
	assert.NoError(t, c.String(hprof.StringRecord{ID: 1, Text: "A"}))
}

func TestConsumer_UsesProvidedLogger(t *testing.T) {
	log := &utils.NullLogger{}
	c := New(log)
	assert.NoError(t, c.HeapDumpBegin(false))
	assert.NoError(t, c.HeapDumpEnd())
}
