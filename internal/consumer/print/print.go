// Package print implements a Handler that logs decoded records through
// pkg/utils.Logger — the reference "printer" consumer.
package print

import (
	"github.com/hprofdecode/internal/hprof"
	"github.com/hprofdecode/pkg/utils"
)

// Consumer logs records via its Logger: the header, strings, load-class
// records, heap summaries, heap-dump container begin/end, and class,
// instance, object-array and primitive-array dumps. Unload-class, stack
// frame/trace, alloc-sites, thread, CPU-sample, control-settings and
// GC-root records are received but not logged.
type Consumer struct {
	hprof.NoopHandler
	log utils.Logger
}

// New returns a Consumer that logs through log. A nil log falls back to a
// no-op logger.
func New(log utils.Logger) *Consumer {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Consumer{log: log}
}

func (c *Consumer) Header(h hprof.Header) error {
	c.log.WithFields(map[string]interface{}{
		"format":  h.FormatName,
		"id_size": h.IDSize,
	}).Info("header")
	return nil
}

func (c *Consumer) String(r hprof.StringRecord) error {
	c.log.WithField("id", r.ID).Debug("string: %s", r.Text)
	return nil
}

func (c *Consumer) LoadClass(r hprof.LoadClassRecord) error {
	c.log.WithField("class_object_id", r.ClassObjectID).Debug("load_class serial=%d", r.ClassSerial)
	return nil
}

func (c *Consumer) HeapSummary(r hprof.HeapSummaryRecord) error {
	c.log.Info("heap_summary: live=%d/%d total=%d/%d", r.LiveInstances, r.LiveBytes, r.TotalInstances, r.TotalBytes)
	return nil
}

func (c *Consumer) HeapDumpBegin(segment bool) error {
	if segment {
		c.log.Debug("heap_dump_segment begin")
	} else {
		c.log.Debug("heap_dump begin")
	}
	return nil
}

func (c *Consumer) HeapDumpEnd() error {
	c.log.Debug("heap_dump end")
	return nil
}

func (c *Consumer) ClassDump(r hprof.ClassDump) error {
	c.log.WithField("class_object_id", r.ClassObjectID).Debug("class_dump fields=%d", len(r.InstanceFields))
	return nil
}

func (c *Consumer) InstanceDump(r hprof.InstanceDump) error {
	c.log.WithField("object_id", r.ObjectID).Debug("instance_dump class=%d fields=%d", r.ClassObjectID, len(r.Fields))
	return nil
}

func (c *Consumer) ObjectArrayDump(r hprof.ObjectArrayDump) error {
	c.log.WithField("array_object_id", r.ArrayObjectID).Debug("object_array_dump elements=%d", len(r.Elements))
	return nil
}

func (c *Consumer) PrimitiveArrayDump(r hprof.PrimitiveArrayDump) error {
	c.log.WithField("array_object_id", r.ArrayObjectID).Debug("primitive_array_dump type=%s elements=%d", r.ElementType, len(r.Elements))
	return nil
}
