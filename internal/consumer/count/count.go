// Package count implements the minimal reference Handler: it tallies
// records by kind and reports totals once decoding finishes.
package count

import (
	"sync"

	"github.com/hprofdecode/internal/hprof"
)

// Summary is the final tally produced by a Consumer.
type Summary struct {
	Records         map[string]int64 `json:"records"`
	ClassDumps      int64            `json:"class_dumps"`
	InstanceDumps   int64            `json:"instance_dumps"`
	ObjectArrays    int64            `json:"object_arrays"`
	PrimitiveArrays int64            `json:"primitive_arrays"`
	GCRoots         int64            `json:"gc_roots"`
	TotalBytesSeen  int64            `json:"-"`
}

// Consumer implements hprof.Handler by counting every record kind it sees.
// It is safe to read Summary() only after the decode has finished.
type Consumer struct {
	hprof.NoopHandler

	mu  sync.Mutex
	sum Summary
}

// New returns a Consumer with a zeroed summary.
func New() *Consumer {
	return &Consumer{sum: Summary{Records: make(map[string]int64)}}
}

func (c *Consumer) bump(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sum.Records[kind]++
}

func (c *Consumer) Header(hprof.Header) error { c.bump("header"); return nil }

func (c *Consumer) String(hprof.StringRecord) error         { c.bump("string"); return nil }
func (c *Consumer) LoadClass(hprof.LoadClassRecord) error   { c.bump("load_class"); return nil }
func (c *Consumer) UnloadClass(hprof.UnloadClassRecord) error { c.bump("unload_class"); return nil }
func (c *Consumer) StackFrame(hprof.StackFrameRecord) error { c.bump("stack_frame"); return nil }
func (c *Consumer) StackTrace(hprof.StackTraceRecord) error { c.bump("stack_trace"); return nil }
func (c *Consumer) AllocSites(hprof.AllocSitesRecord) error { c.bump("alloc_sites"); return nil }
func (c *Consumer) HeapSummary(hprof.HeapSummaryRecord) error {
	c.bump("heap_summary")
	return nil
}
func (c *Consumer) StartThread(hprof.StartThreadRecord) error { c.bump("start_thread"); return nil }
func (c *Consumer) EndThread(hprof.EndThreadRecord) error     { c.bump("end_thread"); return nil }
func (c *Consumer) CPUSamples(hprof.CPUSamplesRecord) error   { c.bump("cpu_samples"); return nil }
func (c *Consumer) ControlSettings(hprof.ControlSettingsRecord) error {
	c.bump("control_settings")
	return nil
}

func (c *Consumer) HeapDumpBegin(bool) error { c.bump("heap_dump"); return nil }
func (c *Consumer) HeapDumpEnd() error       { c.bump("heap_dump_end"); return nil }

func (c *Consumer) RootUnknown(hprof.RootUnknown) error { c.bumpRoot(); return nil }
func (c *Consumer) RootJNIGlobal(hprof.RootJNIGlobal) error { c.bumpRoot(); return nil }
func (c *Consumer) RootJNILocal(hprof.RootJNILocal) error { c.bumpRoot(); return nil }
func (c *Consumer) RootJavaFrame(hprof.RootJavaFrame) error { c.bumpRoot(); return nil }
func (c *Consumer) RootNativeStack(hprof.RootNativeStack) error { c.bumpRoot(); return nil }
func (c *Consumer) RootStickyClass(hprof.RootStickyClass) error { c.bumpRoot(); return nil }
func (c *Consumer) RootThreadBlock(hprof.RootThreadBlock) error { c.bumpRoot(); return nil }
func (c *Consumer) RootMonitorUsed(hprof.RootMonitorUsed) error { c.bumpRoot(); return nil }
func (c *Consumer) RootThreadObject(hprof.RootThreadObject) error { c.bumpRoot(); return nil }

func (c *Consumer) bumpRoot() {
	c.mu.Lock()
	c.sum.GCRoots++
	c.mu.Unlock()
}

func (c *Consumer) ClassDump(hprof.ClassDump) error {
	c.mu.Lock()
	c.sum.ClassDumps++
	c.mu.Unlock()
	return nil
}

func (c *Consumer) InstanceDump(hprof.InstanceDump) error {
	c.mu.Lock()
	c.sum.InstanceDumps++
	c.mu.Unlock()
	return nil
}

func (c *Consumer) ObjectArrayDump(hprof.ObjectArrayDump) error {
	c.mu.Lock()
	c.sum.ObjectArrays++
	c.mu.Unlock()
	return nil
}

func (c *Consumer) PrimitiveArrayDump(hprof.PrimitiveArrayDump) error {
	c.mu.Lock()
	c.sum.PrimitiveArrays++
	c.mu.Unlock()
	return nil
}

// Summary returns a copy of the current tally.
func (c *Consumer) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sum
	out.Records = make(map[string]int64, len(c.sum.Records))
	for k, v := range c.sum.Records {
		out.Records[k] = v
	}
	return out
}
