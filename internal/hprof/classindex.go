package hprof

// classIndex maintains the eager mapping classObjId -> ordered instance
// field descriptors (including inherited ones), built up as class dumps are
// observed. It is written on ClassDump and read on InstanceDump; the
// decoder is single-threaded so no locking is needed.
type classIndex struct {
	dumps map[uint64]*ClassDump
}

func newClassIndex() *classIndex {
	return &classIndex{dumps: make(map[uint64]*ClassDump)}
}

func (c *classIndex) add(cd *ClassDump) {
	c.dumps[cd.ClassObjectID] = cd
}

func (c *classIndex) get(classObjID uint64) (*ClassDump, bool) {
	cd, ok := c.dumps[classObjID]
	return cd, ok
}

// fields returns the ordered instance field descriptors for classObjID,
// current-class-first, then each ancestor in turn up the superclass chain.
// This matches the actual byte layout the JVM writes into an instance dump
// (the current class's own fields precede its superclass's), not a naive
// top-down declaration-order reading.
//
// It reports ReasonMissingClassDump if classObjID or any ancestor in its
// chain has not yet been observed via a ClassDump.
func (c *classIndex) fields(classObjID uint64) ([]FieldDescriptor, error) {
	var out []FieldDescriptor
	seen := make(map[uint64]bool)
	cur := classObjID
	for cur != 0 {
		if seen[cur] {
			break // defend against a malformed cyclic superclass chain
		}
		seen[cur] = true

		cd, ok := c.get(cur)
		if !ok {
			return nil, &FormatError{
				Reason: ReasonMissingClassDump,
				Tag:    int(HeapTagInstanceDump),
				Detail: "no class dump observed for referenced class object id",
			}
		}
		out = append(out, cd.InstanceFields...)
		cur = cd.SuperClassObjectID
	}
	return out, nil
}
