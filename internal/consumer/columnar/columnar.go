package columnar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/hprofdecode/internal/hprof"
	"github.com/hprofdecode/pkg/filter"
	"github.com/hprofdecode/pkg/parallel"
	"github.com/hprofdecode/pkg/writer"
)

// Config controls how a Consumer batches and filters rows before writing.
type Config struct {
	// BatchSize is the number of rows buffered per table before a flush.
	// Zero selects a default of 500.
	BatchSize int

	// ClassFilterPrefixes, when non-empty, restricts InstanceRow/ClassRow
	// export to classes classified as business code under these prefixes.
	// Resolution relies on the stream having emitted LoadClass and String
	// records for the classes in question before their dumps.
	ClassFilterPrefixes []string

	// FlatFileDir is the directory the flat-file fallback writes its
	// gzipped JSON files under. The fallback is used whenever the Consumer
	// was built with a nil db; when db is non-nil this field is ignored.
	FlatFileDir string
}

// rootBuffers holds one slice per GC-root variant. Roots are typically far
// less numerous than instances or strings, so unlike the other buffers they
// are never auto-flushed on a batch-size threshold — only Flush drains them.
type rootBuffers struct {
	unknown     []RootUnknownRow
	jniGlobal   []RootJNIGlobalRow
	jniLocal    []RootJNILocalRow
	javaFrame   []RootJavaFrameRow
	nativeStack []RootNativeStackRow
	stickyClass []RootStickyClassRow
	threadBlock []RootThreadBlockRow
	monitorUsed []RootMonitorUsedRow
	threadObj   []RootThreadObjectRow
}

// Consumer batches decoded records and writes them to a GORM database in
// chunks, using a worker pool to parallelize the flush of independent
// tables. It is the reference "export to a columnar database" consumer.
type Consumer struct {
	hprof.NoopHandler

	db     *gorm.DB
	cfg    Config
	filter *filter.ClassFilter
	pool   *parallel.WorkerPool[func(context.Context) error, error]

	mu         sync.Mutex
	strNames   map[uint64]string // string id -> text
	classNames map[uint64]string // class object id -> resolved name

	strings        []StringRow
	classes        []ClassRow
	instances      []InstanceRow
	instanceFields []InstanceFieldRow
	objArrays      []ObjectArrayRow
	primArrays     []PrimitiveArrayRow
	summaries      []HeapSummaryRow
	threads        []ThreadRow
	roots          rootBuffers

	// Row counts written so far, for UploadArtifact's manifest. Updated
	// only by the flush* methods, so plain atomics suffice.
	countStrings        int64
	countClasses        int64
	countInstances      int64
	countInstanceFields int64
	countObjArrays      int64
	countPrimArrays     int64
	countSummaries      int64
	countThreads        int64
	countRoots          int64

	// flatSeq disambiguates flat-file fallback filenames across repeated
	// flushes of the same table, so an auto-flush mid-decode never
	// overwrites a previous flush's file.
	flatSeq int64
}

// New returns a Consumer that writes through db, batching cfg.BatchSize
// rows per table before each flush. db may be nil when cfg.FlatFileDir is
// set, in which case flushes write gzipped JSON files instead.
func New(db *gorm.DB, cfg Config) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if db == nil && cfg.FlatFileDir != "" {
		_ = os.MkdirAll(cfg.FlatFileDir, 0755)
	}
	c := &Consumer{
		db:         db,
		cfg:        cfg,
		strNames:   make(map[uint64]string),
		classNames: make(map[uint64]string),
		pool:       parallel.NewWorkerPool[func(context.Context) error, error](parallel.DefaultPoolConfig()),
	}
	if len(cfg.ClassFilterPrefixes) > 0 {
		c.filter = filter.NewClassFilter()
		c.filter.AddBusinessPrefixes(cfg.ClassFilterPrefixes)
	}
	return c
}

func (c *Consumer) String(r hprof.StringRecord) error {
	c.mu.Lock()
	c.strNames[r.ID] = r.Text
	c.strings = append(c.strings, StringRow{ID: r.ID, Text: r.Text})
	full := len(c.strings) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		return c.flushStrings(context.Background())
	}
	return nil
}

func (c *Consumer) LoadClass(r hprof.LoadClassRecord) error {
	c.mu.Lock()
	if name, ok := c.strNames[r.ClassNameID]; ok {
		c.classNames[r.ClassObjectID] = name
	}
	c.mu.Unlock()
	return nil
}

func (c *Consumer) classAllowed(classObjID uint64) bool {
	if c.filter == nil {
		return true
	}
	c.mu.Lock()
	name, ok := c.classNames[classObjID]
	c.mu.Unlock()
	if !ok {
		return true // no name resolved yet; don't drop unknown classes
	}
	return c.filter.Classify(name) == filter.CategoryBusiness
}

func (c *Consumer) ClassDump(r hprof.ClassDump) error {
	if !c.classAllowed(r.ClassObjectID) {
		return nil
	}
	row := ClassRow{
		ClassObjectID:       r.ClassObjectID,
		SuperClassObjectID:  r.SuperClassObjectID,
		ClassLoaderObjectID: r.ClassLoaderObjectID,
		InstanceSize:        r.InstanceSize,
		FieldCount:          len(r.InstanceFields),
	}
	c.mu.Lock()
	c.classes = append(c.classes, row)
	full := len(c.classes) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		return c.flushClasses(context.Background())
	}
	return nil
}

func (c *Consumer) InstanceDump(r hprof.InstanceDump) error {
	if !c.classAllowed(r.ClassObjectID) {
		return nil
	}
	row := InstanceRow{
		ObjectID:      r.ObjectID,
		ClassObjectID: r.ClassObjectID,
		FieldCount:    len(r.Fields),
	}
	c.mu.Lock()
	c.instances = append(c.instances, row)
	full := len(c.instances) >= c.cfg.BatchSize
	for _, f := range r.Fields {
		c.instanceFields = append(c.instanceFields, InstanceFieldRow{
			InstanceObjectID: r.ObjectID,
			FieldName:        c.resolveFieldName(f.NameID),
			FieldType:        f.Type.String(),
			FieldValue:       formatValue(f.Value),
		})
	}
	fieldsFull := len(c.instanceFields) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		if err := c.flushInstances(context.Background()); err != nil {
			return err
		}
	}
	if fieldsFull {
		return c.flushInstanceFields(context.Background())
	}
	return nil
}

// resolveFieldName looks up a field's name string by ID, falling back to
// the raw ID (as the original project's handler does) when the String
// record for it hasn't been seen yet. Callers must hold c.mu.
func (c *Consumer) resolveFieldName(nameID uint64) string {
	if name, ok := c.strNames[nameID]; ok {
		return name
	}
	return fmt.Sprintf("%d", nameID)
}

// formatValue renders a decoded Value the way the original project's
// String.valueOf(Object) does for its normalized instance_fields table: a
// plain textual rendition of whichever field Type selects.
func formatValue(v hprof.Value) string {
	switch v.Type {
	case hprof.TypeObject:
		return fmt.Sprintf("%d", v.Object)
	case hprof.TypeBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case hprof.TypeChar:
		return fmt.Sprintf("%c", v.Char)
	case hprof.TypeFloat:
		return fmt.Sprintf("%g", v.Float)
	case hprof.TypeDouble:
		return fmt.Sprintf("%g", v.Double)
	case hprof.TypeByte:
		return fmt.Sprintf("%d", v.Byte)
	case hprof.TypeShort:
		return fmt.Sprintf("%d", v.Short)
	case hprof.TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case hprof.TypeLong:
		return fmt.Sprintf("%d", v.Long)
	default:
		return ""
	}
}

func (c *Consumer) ObjectArrayDump(r hprof.ObjectArrayDump) error {
	row := ObjectArrayRow{
		ArrayObjectID:  r.ArrayObjectID,
		ElementClassID: r.ElementClassObjectID,
		ElementCount:   len(r.Elements),
	}
	c.mu.Lock()
	c.objArrays = append(c.objArrays, row)
	full := len(c.objArrays) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		return c.flushObjectArrays(context.Background())
	}
	return nil
}

func (c *Consumer) PrimitiveArrayDump(r hprof.PrimitiveArrayDump) error {
	row := PrimitiveArrayRow{
		ArrayObjectID: r.ArrayObjectID,
		ElementType:   r.ElementType.String(),
		ElementCount:  len(r.Elements),
	}
	c.mu.Lock()
	c.primArrays = append(c.primArrays, row)
	full := len(c.primArrays) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		return c.flushPrimitiveArrays(context.Background())
	}
	return nil
}

func (c *Consumer) HeapSummary(r hprof.HeapSummaryRecord) error {
	c.mu.Lock()
	c.summaries = append(c.summaries, HeapSummaryRow{
		LiveInstances:  r.LiveInstances,
		LiveBytes:      r.LiveBytes,
		TotalInstances: r.TotalInstances,
		TotalBytes:     r.TotalBytes,
	})
	c.mu.Unlock()
	return nil
}

// StartThread buffers a thread row. Threads are typically not numerous, so
// unlike the other tables this is never auto-flushed on batch size.
func (c *Consumer) StartThread(r hprof.StartThreadRecord) error {
	c.mu.Lock()
	c.threads = append(c.threads, ThreadRow{
		ThreadSerial:            r.ThreadSerial,
		ThreadObjectID:          r.ThreadObjectID,
		StackTraceSerial:        r.StackTraceSerial,
		ThreadNameID:            r.ThreadNameID,
		ThreadGroupNameID:       r.ThreadGroupNameID,
		ThreadParentGroupNameID: r.ThreadParentGroupNameID,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootUnknown(r hprof.RootUnknown) error {
	c.mu.Lock()
	c.roots.unknown = append(c.roots.unknown, RootUnknownRow{ObjectID: r.ObjectID})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootJNIGlobal(r hprof.RootJNIGlobal) error {
	c.mu.Lock()
	c.roots.jniGlobal = append(c.roots.jniGlobal, RootJNIGlobalRow{
		ObjectID:       r.ObjectID,
		JNIGlobalRefID: r.JNIGlobalRefID,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootJNILocal(r hprof.RootJNILocal) error {
	c.mu.Lock()
	c.roots.jniLocal = append(c.roots.jniLocal, RootJNILocalRow{
		ObjectID:     r.ObjectID,
		ThreadSerial: r.ThreadSerial,
		FrameNumber:  r.FrameNumber,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootJavaFrame(r hprof.RootJavaFrame) error {
	c.mu.Lock()
	c.roots.javaFrame = append(c.roots.javaFrame, RootJavaFrameRow{
		ObjectID:     r.ObjectID,
		ThreadSerial: r.ThreadSerial,
		FrameNumber:  r.FrameNumber,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootNativeStack(r hprof.RootNativeStack) error {
	c.mu.Lock()
	c.roots.nativeStack = append(c.roots.nativeStack, RootNativeStackRow{
		ObjectID:     r.ObjectID,
		ThreadSerial: r.ThreadSerial,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootStickyClass(r hprof.RootStickyClass) error {
	c.mu.Lock()
	c.roots.stickyClass = append(c.roots.stickyClass, RootStickyClassRow{ObjectID: r.ObjectID})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootThreadBlock(r hprof.RootThreadBlock) error {
	c.mu.Lock()
	c.roots.threadBlock = append(c.roots.threadBlock, RootThreadBlockRow{
		ObjectID:     r.ObjectID,
		ThreadSerial: r.ThreadSerial,
	})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootMonitorUsed(r hprof.RootMonitorUsed) error {
	c.mu.Lock()
	c.roots.monitorUsed = append(c.roots.monitorUsed, RootMonitorUsedRow{ObjectID: r.ObjectID})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) RootThreadObject(r hprof.RootThreadObject) error {
	c.mu.Lock()
	c.roots.threadObj = append(c.roots.threadObj, RootThreadObjectRow{
		ObjectID:         r.ObjectID,
		ThreadSerial:     r.ThreadSerial,
		StackTraceSerial: r.StackTraceSerial,
	})
	c.mu.Unlock()
	return nil
}

// Flush writes every buffered row regardless of batch size, using the
// worker pool to run each table's insert concurrently. Call it once after
// the decode finishes to drain any partial batches.
func (c *Consumer) Flush(ctx context.Context) error {
	flushers := []func(context.Context) error{
		c.flushStrings,
		c.flushClasses,
		c.flushInstances,
		c.flushInstanceFields,
		c.flushObjectArrays,
		c.flushPrimitiveArrays,
		c.flushSummaries,
		c.flushThreads,
		c.flushRoots,
	}
	results := c.pool.ExecuteFunc(ctx, flushers, func(ctx context.Context, flush func(context.Context) error) (error, error) {
		err := flush(ctx)
		return err, err
	})
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

// writeRows persists rows either through db (batched CreateInBatches) or,
// in flat-file fallback mode, as a gzipped JSON file named
// <table>.<seq>.json.gz under cfg.FlatFileDir, where <seq> is a zero-padded
// sequence number shared across all tables.
func writeRows[T any](ctx context.Context, c *Consumer, table string, rows []T) error {
	if c.db != nil {
		return c.db.WithContext(ctx).CreateInBatches(rows, c.cfg.BatchSize).Error
	}
	seq := atomic.AddInt64(&c.flatSeq, 1)
	path := filepath.Join(c.cfg.FlatFileDir, fmt.Sprintf("%s.%04d.json.gz", table, seq))
	return writer.NewGzipWriter[[]T]().WriteToFile(rows, path)
}

func (c *Consumer) flushStrings(ctx context.Context) error {
	c.mu.Lock()
	rows := c.strings
	c.strings = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "strings", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countStrings, int64(len(rows)))
	return nil
}

func (c *Consumer) flushClasses(ctx context.Context) error {
	c.mu.Lock()
	rows := c.classes
	c.classes = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "classes", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countClasses, int64(len(rows)))
	return nil
}

func (c *Consumer) flushInstances(ctx context.Context) error {
	c.mu.Lock()
	rows := c.instances
	c.instances = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "instances", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countInstances, int64(len(rows)))
	return nil
}

func (c *Consumer) flushObjectArrays(ctx context.Context) error {
	c.mu.Lock()
	rows := c.objArrays
	c.objArrays = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "object_arrays", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countObjArrays, int64(len(rows)))
	return nil
}

func (c *Consumer) flushPrimitiveArrays(ctx context.Context) error {
	c.mu.Lock()
	rows := c.primArrays
	c.primArrays = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "primitive_arrays", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countPrimArrays, int64(len(rows)))
	return nil
}

func (c *Consumer) flushSummaries(ctx context.Context) error {
	c.mu.Lock()
	rows := c.summaries
	c.summaries = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "summaries", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countSummaries, int64(len(rows)))
	return nil
}

func (c *Consumer) flushInstanceFields(ctx context.Context) error {
	c.mu.Lock()
	rows := c.instanceFields
	c.instanceFields = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "instance_fields", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countInstanceFields, int64(len(rows)))
	return nil
}

func (c *Consumer) flushThreads(ctx context.Context) error {
	c.mu.Lock()
	rows := c.threads
	c.threads = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	if err := writeRows(ctx, c, "threads", rows); err != nil {
		return err
	}
	atomic.AddInt64(&c.countThreads, int64(len(rows)))
	return nil
}

// flushRoots writes every buffered GC-root table that has rows. Each
// variant is its own table (see models.go), so unlike the other flush*
// methods this writes up to nine separate files/tables in one call.
func (c *Consumer) flushRoots(ctx context.Context) error {
	c.mu.Lock()
	roots := c.roots
	c.roots = rootBuffers{}
	c.mu.Unlock()

	var n int
	if len(roots.unknown) > 0 {
		if err := writeRows(ctx, c, "root_unknown", roots.unknown); err != nil {
			return err
		}
		n += len(roots.unknown)
	}
	if len(roots.jniGlobal) > 0 {
		if err := writeRows(ctx, c, "root_jni_global", roots.jniGlobal); err != nil {
			return err
		}
		n += len(roots.jniGlobal)
	}
	if len(roots.jniLocal) > 0 {
		if err := writeRows(ctx, c, "root_jni_local", roots.jniLocal); err != nil {
			return err
		}
		n += len(roots.jniLocal)
	}
	if len(roots.javaFrame) > 0 {
		if err := writeRows(ctx, c, "root_java_frame", roots.javaFrame); err != nil {
			return err
		}
		n += len(roots.javaFrame)
	}
	if len(roots.nativeStack) > 0 {
		if err := writeRows(ctx, c, "root_native_stack", roots.nativeStack); err != nil {
			return err
		}
		n += len(roots.nativeStack)
	}
	if len(roots.stickyClass) > 0 {
		if err := writeRows(ctx, c, "root_sticky_class", roots.stickyClass); err != nil {
			return err
		}
		n += len(roots.stickyClass)
	}
	if len(roots.threadBlock) > 0 {
		if err := writeRows(ctx, c, "root_thread_block", roots.threadBlock); err != nil {
			return err
		}
		n += len(roots.threadBlock)
	}
	if len(roots.monitorUsed) > 0 {
		if err := writeRows(ctx, c, "root_monitor_used", roots.monitorUsed); err != nil {
			return err
		}
		n += len(roots.monitorUsed)
	}
	if len(roots.threadObj) > 0 {
		if err := writeRows(ctx, c, "root_thread_obj", roots.threadObj); err != nil {
			return err
		}
		n += len(roots.threadObj)
	}

	atomic.AddInt64(&c.countRoots, int64(n))
	return nil
}
