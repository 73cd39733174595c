// Package graph implements the reference retained-size consumer: it builds
// an object reference graph purely from Handler callbacks and computes
// retained size via a dominator-tree pass, the correlation step spec.md
// leaves to consumers rather than the core decoder.
package graph

import (
	"sync"

	"github.com/hprofdecode/internal/hprof"
	"github.com/hprofdecode/pkg/collections"
	"github.com/hprofdecode/pkg/filter"
)

// superRoot is a synthetic node dominating every GC root, matching the
// convention of treating GC roots as children of a single virtual root.
const superRoot = ^uint64(0)

// Consumer builds an object reference graph while decoding, and computes
// dominance/retained size on demand via Finish.
type Consumer struct {
	hprof.NoopHandler

	filter *filter.ClassFilter

	mu sync.Mutex

	outgoing    map[uint64][]uint64 // objectID -> objects it references
	incoming    map[uint64][]uint64 // objectID -> objects that reference it
	objectClass map[uint64]uint64   // objectID -> classID
	objectSize  map[uint64]int64    // objectID -> shallow size
	classSize   map[uint64]int64    // classID -> instance size
	classNames  map[uint64]string   // classID -> resolved name
	strNames    map[uint64]string   // string id -> text
	classIDs    map[uint64]bool     // classes seen via ClassDump (implicit GC roots)
	gcRoots     map[uint64]bool
}

// New returns an empty Consumer. If f is non-nil, Finish leaves out the
// outgoing references of objects whose class has a resolved name that f
// does not classify as CategoryBusiness (that is, a name outside f's
// business prefixes); objects whose class name is unknown
// keep their references. Every object still appears in the results.
func New(f *filter.ClassFilter) *Consumer {
	return &Consumer{
		filter:      f,
		outgoing:    make(map[uint64][]uint64),
		incoming:    make(map[uint64][]uint64),
		objectClass: make(map[uint64]uint64),
		objectSize:  make(map[uint64]int64),
		classSize:   make(map[uint64]int64),
		classNames:  make(map[uint64]string),
		strNames:    make(map[uint64]string),
		classIDs:    make(map[uint64]bool),
		gcRoots:     make(map[uint64]bool),
	}
}

func (c *Consumer) link(from, to uint64) {
	c.outgoing[from] = append(c.outgoing[from], to)
	c.incoming[to] = append(c.incoming[to], from)
}

func (c *Consumer) addRoot(objID uint64) {
	c.mu.Lock()
	c.gcRoots[objID] = true
	c.mu.Unlock()
}

func (c *Consumer) String(r hprof.StringRecord) error {
	c.mu.Lock()
	c.strNames[r.ID] = r.Text
	c.mu.Unlock()
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

func (c *Consumer) RootUnknown(r hprof.RootUnknown) error           { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootJNIGlobal(r hprof.RootJNIGlobal) error       { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootJNILocal(r hprof.RootJNILocal) error         { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootJavaFrame(r hprof.RootJavaFrame) error       { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootNativeStack(r hprof.RootNativeStack) error   { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootStickyClass(r hprof.RootStickyClass) error   { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootThreadBlock(r hprof.RootThreadBlock) error   { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootMonitorUsed(r hprof.RootMonitorUsed) error   { c.addRoot(r.ObjectID); return nil }
func (c *Consumer) RootThreadObject(r hprof.RootThreadObject) error { c.addRoot(r.ObjectID); return nil }

func (c *Consumer) ClassDump(r hprof.ClassDump) error {
	c.mu.Lock()
	c.classIDs[r.ClassObjectID] = true
	c.classSize[r.ClassObjectID] = int64(r.InstanceSize)
	c.mu.Unlock()
	return nil
}

func (c *Consumer) InstanceDump(r hprof.InstanceDump) error {
	c.mu.Lock()
	c.objectClass[r.ObjectID] = r.ClassObjectID
	c.objectSize[r.ObjectID] = c.classSize[r.ClassObjectID]
	for _, f := range r.Fields {
		if f.Type == hprof.TypeObject && f.Value.Object != 0 {
			c.link(r.ObjectID, f.Value.Object)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Consumer) ObjectArrayDump(r hprof.ObjectArrayDump) error {
	c.mu.Lock()
	c.objectSize[r.ArrayObjectID] = int64(len(r.Elements))*8 + 16
	for _, elem := range r.Elements {
		if elem != 0 {
			c.link(r.ArrayObjectID, elem)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Consumer) PrimitiveArrayDump(r hprof.PrimitiveArrayDump) error {
	width, ok := hprof.BasicTypeSize[r.ElementType]
	if !ok {
		width = 1
	}
	c.mu.Lock()
	c.objectSize[r.ArrayObjectID] = int64(len(r.Elements))*int64(width) + 16
	c.mu.Unlock()
	return nil
}

func (c *Consumer) classAllowed(classID uint64) bool {
	if c.filter == nil {
		return true
	}
	name, ok := c.classNames[classID]
	if !ok {
		return true
	}
	return c.filter.Classify(name) == filter.CategoryBusiness
}

// Result holds the outcome of a Finish() dominator/retained-size pass.
type Result struct {
	// Dominators maps objectID -> immediate dominator objectID. The
	// synthetic superRoot value marks objects with no dominator other than
	// the synthetic root (the GC roots themselves, and objects reachable
	// from more than one root) as well as objects unreachable from any
	// GC root.
	Dominators map[uint64]uint64
	// Retained maps objectID -> shallow size plus the retained size of
	// every object it dominates.
	Retained map[uint64]int64
	// Unreachable lists objects never visited from a GC root.
	Unreachable []uint64
}

// Finish computes dominators and retained sizes over the graph built so
// far. It is safe to call once, after decoding has completed.
func (c *Consumer) Finish() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	objIDsPtr := collections.GetUint64Slice()
	defer collections.PutUint64Slice(objIDsPtr)
	seen := make(map[uint64]bool)
	for id := range c.objectClass {
		if !seen[id] {
			seen[id] = true
			*objIDsPtr = append(*objIDsPtr, id)
		}
	}
	for id := range c.objectSize {
		if !seen[id] {
			seen[id] = true
			*objIDsPtr = append(*objIDsPtr, id)
		}
	}
	objIDs := *objIDsPtr

	n := len(objIDs)
	idx := make(map[uint64]int, n+1) // 0 reserved for superRoot
	rev := make([]uint64, n+1)
	idx[superRoot] = 0
	rev[0] = superRoot
	for i, id := range objIDs {
		idx[id] = i + 1
		rev[i+1] = id
	}
	total := n + 1

	successors := make([][]int, total)
	for obj, refs := range c.outgoing {
		from, ok := idx[obj]
		if !ok {
			continue
		}
		if !c.classAllowed(c.objectClass[obj]) {
			continue
		}
		for _, to := range refs {
			if toIdx, ok := idx[to]; ok {
				successors[from] = append(successors[from], toIdx)
			}
		}
	}
	rootSet := make(map[uint64]bool)
	for root := range c.gcRoots {
		rootSet[root] = true
	}
	for classID := range c.classIDs {
		rootSet[classID] = true
	}
	for root := range rootSet {
		if toIdx, ok := idx[root]; ok {
			successors[0] = append(successors[0], toIdx)
		}
	}

	predecessors := make([][]int, total)
	for v, succs := range successors {
		for _, w := range succs {
			predecessors[w] = append(predecessors[w], v)
		}
	}

	dom := lengauerTarjan(successors, predecessors, total)

	result := &Result{
		Dominators: make(map[uint64]uint64, n),
		Retained:   make(map[uint64]int64, n),
	}
	for i := 1; i < total; i++ {
		obj := rev[i]
		if dom.idom[i] == -1 {
			result.Unreachable = append(result.Unreachable, obj)
			result.Dominators[obj] = superRoot
			continue
		}
		if dom.idom[i] == 0 {
			result.Dominators[obj] = superRoot
		} else {
			result.Dominators[obj] = rev[dom.idom[i]]
		}
	}

	children := make([][]int, total)
	for i := 1; i < total; i++ {
		if dom.idom[i] >= 0 {
			children[dom.idom[i]] = append(children[dom.idom[i]], i)
		}
	}
	memo := make([]int64, total)
	computed := make([]bool, total)
	var retain func(v int) int64
	retain = func(v int) int64 {
		if computed[v] {
			return memo[v]
		}
		size := c.shallowSize(rev[v])
		for _, ch := range children[v] {
			size += retain(ch)
		}
		memo[v] = size
		computed[v] = true
		return size
	}
	for i := 1; i < total; i++ {
		if dom.idom[i] != -1 {
			result.Retained[rev[i]] = retain(i)
		}
	}

	return result
}

func (c *Consumer) shallowSize(obj uint64) int64 {
	if s, ok := c.objectSize[obj]; ok {
		return s
	}
	return 0
}
