package hprof

// RecordTag identifies a top-level frame's kind.
type RecordTag uint8

// Top-level record tags, per the HPROF binary format.
const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagUnloadClass     RecordTag = 0x03
	TagStackFrame      RecordTag = 0x04
	TagStackTrace      RecordTag = 0x05
	TagAllocSites      RecordTag = 0x06
	TagHeapSummary     RecordTag = 0x07
	TagStartThread     RecordTag = 0x0A
	TagEndThread       RecordTag = 0x0B
	TagHeapDump        RecordTag = 0x0C
	TagCPUSamples      RecordTag = 0x0D
	TagControlSettings RecordTag = 0x0E
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
)

func (t RecordTag) String() string {
	switch t {
	case TagString:
		return "String"
	case TagLoadClass:
		return "LoadClass"
	case TagUnloadClass:
		return "UnloadClass"
	case TagStackFrame:
		return "StackFrame"
	case TagStackTrace:
		return "StackTrace"
	case TagAllocSites:
		return "AllocSites"
	case TagHeapSummary:
		return "HeapSummary"
	case TagStartThread:
		return "StartThread"
	case TagEndThread:
		return "EndThread"
	case TagHeapDump:
		return "HeapDump"
	case TagCPUSamples:
		return "CPUSamples"
	case TagControlSettings:
		return "ControlSettings"
	case TagHeapDumpSegment:
		return "HeapDumpSegment"
	case TagHeapDumpEnd:
		return "HeapDumpEnd"
	default:
		return "Unknown"
	}
}

// HeapTag identifies a sub-record within a heap dump container.
type HeapTag uint8

// Heap dump sub-record tags.
const (
	HeapTagRootUnknown      HeapTag = 0xFF
	HeapTagRootJNIGlobal    HeapTag = 0x01
	HeapTagRootJNILocal     HeapTag = 0x02
	HeapTagRootJavaFrame    HeapTag = 0x03
	HeapTagRootNativeStack  HeapTag = 0x04
	HeapTagRootStickyClass  HeapTag = 0x05
	HeapTagRootThreadBlock  HeapTag = 0x06
	HeapTagRootMonitorUsed  HeapTag = 0x07
	HeapTagRootThreadObject HeapTag = 0x08
	HeapTagClassDump        HeapTag = 0x20
	HeapTagInstanceDump     HeapTag = 0x21
	HeapTagObjectArrayDump  HeapTag = 0x22
	HeapTagPrimArrayDump    HeapTag = 0x23
)

// BasicType is the u8 tag identifying the type of a value in a typed slot
// (constant pool entry, static field, instance field, array element).
type BasicType uint8

// Basic type tags, per the HPROF binary format.
const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// BasicTypeSize maps a basic type tag to its encoded width in bytes. Object
// references are not present here because their width depends on the
// stream's identifier size, not a fixed constant.
var BasicTypeSize = map[BasicType]int{
	TypeBoolean: 1,
	TypeChar:    2,
	TypeFloat:   4,
	TypeDouble:  8,
	TypeByte:    1,
	TypeShort:   2,
	TypeInt:     4,
	TypeLong:    8,
}

func (t BasicType) String() string {
	switch t {
	case TypeObject:
		return "OBJ"
	case TypeBoolean:
		return "BOOL"
	case TypeChar:
		return "CHAR"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeByte:
		return "BYTE"
	case TypeShort:
		return "SHORT"
	case TypeInt:
		return "INT"
	case TypeLong:
		return "LONG"
	default:
		return "UNKNOWN"
	}
}

// Value is a tagged sum of every value a basic type tag can decode to. Only
// the field matching Type is meaningful; the rest are zero.
type Value struct {
	Type    BasicType
	Object  uint64
	Bool    bool
	Char    uint16
	Float   float32
	Double  float64
	Byte    int8
	Short   int16
	Int     int32
	Long    int64
}

// Header is the fixed preamble of an HPROF stream.
type Header struct {
	FormatName string
	IDSize     int
	Timestamp  uint64
}

// StringRecord is tag 0x01.
type StringRecord struct {
	ID   uint64
	Text string
}

// LoadClassRecord is tag 0x02.
type LoadClassRecord struct {
	ClassSerial      uint32
	ClassObjectID    uint64
	StackTraceSerial uint32
	ClassNameID      uint64
}

// UnloadClassRecord is tag 0x03.
type UnloadClassRecord struct {
	ClassSerial uint32
}

// StackFrameRecord is tag 0x04.
type StackFrameRecord struct {
	FrameID          uint64
	MethodNameID     uint64
	MethodSignatureID uint64
	SourceFileNameID uint64
	ClassSerial      uint32
	LineNumber       int32
}

// StackTraceRecord is tag 0x05.
type StackTraceRecord struct {
	StackTraceSerial uint32
	ThreadSerial     uint32
	FrameIDs         []uint64
}

// AllocSite is one entry of an AllocSitesRecord.
type AllocSite struct {
	IsArray          uint8
	ClassSerial      uint32
	StackTraceSerial uint32
	LiveBytes        uint32
	LiveInstances    uint32
	TotalBytes       uint32
	TotalInstances   uint32
}

// AllocSitesRecord is tag 0x06.
type AllocSitesRecord struct {
	BitMask       uint16
	CutoffRatio   float32
	TotalLiveBytes     uint32
	TotalLiveInstances uint32
	TotalBytesAllocated     uint64
	TotalInstancesAllocated uint64
	Sites []AllocSite
}

// HeapSummaryRecord is tag 0x07.
type HeapSummaryRecord struct {
	LiveBytes     uint32
	LiveInstances uint32
	TotalBytes     uint64
	TotalInstances uint64
}

// StartThreadRecord is tag 0x0A.
type StartThreadRecord struct {
	ThreadSerial     uint32
	ThreadObjectID   uint64
	StackTraceSerial uint32
	ThreadNameID     uint64
	ThreadGroupNameID       uint64
	ThreadParentGroupNameID uint64
}

// EndThreadRecord is tag 0x0B.
type EndThreadRecord struct {
	ThreadSerial uint32
}

// CPUSample is one entry of a CPUSamplesRecord.
type CPUSample struct {
	NumSamples       uint32
	StackTraceSerial uint32
}

// CPUSamplesRecord is tag 0x0D.
type CPUSamplesRecord struct {
	TotalSamples uint32
	Samples      []CPUSample
}

// ControlSettingsRecord is tag 0x0E.
type ControlSettingsRecord struct {
	BitMask         uint32
	StackTraceDepth uint16
}

// RootUnknown is heap sub-tag 0xFF.
type RootUnknown struct {
	ObjectID uint64
}

// RootJNIGlobal is heap sub-tag 0x01.
type RootJNIGlobal struct {
	ObjectID   uint64
	JNIGlobalRefID uint64
}

// RootJNILocal is heap sub-tag 0x02.
type RootJNILocal struct {
	ObjectID     uint64
	ThreadSerial uint32
	FrameNumber  uint32
}

// RootJavaFrame is heap sub-tag 0x03.
type RootJavaFrame struct {
	ObjectID     uint64
	ThreadSerial uint32
	FrameNumber  uint32
}

// RootNativeStack is heap sub-tag 0x04.
type RootNativeStack struct {
	ObjectID     uint64
	ThreadSerial uint32
}

// RootStickyClass is heap sub-tag 0x05.
type RootStickyClass struct {
	ObjectID uint64
}

// RootThreadBlock is heap sub-tag 0x06.
type RootThreadBlock struct {
	ObjectID     uint64
	ThreadSerial uint32
}

// RootMonitorUsed is heap sub-tag 0x07.
type RootMonitorUsed struct {
	ObjectID uint64
}

// RootThreadObject is heap sub-tag 0x08.
type RootThreadObject struct {
	ObjectID         uint64
	ThreadSerial     uint32
	StackTraceSerial uint32
}

// Constant is one entry of a class dump's constant pool.
type Constant struct {
	PoolIndex uint16
	Value     Value
}

// StaticField is one entry of a class dump's static field section.
type StaticField struct {
	NameID uint64
	Value  Value
}

// FieldDescriptor names one instance field's declared type without a value;
// instance field values live in InstanceDump records, decoded against this
// descriptor.
type FieldDescriptor struct {
	NameID uint64
	Type   BasicType
}

// ClassDump is heap sub-tag 0x20.
type ClassDump struct {
	ClassObjectID       uint64
	StackTraceSerial    uint32
	SuperClassObjectID  uint64
	ClassLoaderObjectID uint64
	SignersObjectID     uint64
	ProtectionDomainObjectID uint64
	InstanceSize        uint32
	Constants           []Constant
	Statics             []StaticField
	InstanceFields      []FieldDescriptor
}

// InstanceField pairs a resolved field descriptor with its decoded value,
// as delivered by the eager instance-dump decoding strategy.
type InstanceField struct {
	FieldDescriptor
	Value Value
}

// InstanceDump is heap sub-tag 0x21. Fields is populated in current-class-
// first, then-superclass order — the order fields are actually laid out in
// the raw byte stream, not declaration order read top-down through the
// class hierarchy.
type InstanceDump struct {
	ObjectID         uint64
	StackTraceSerial uint32
	ClassObjectID    uint64
	Fields           []InstanceField
}

// ObjectArrayDump is heap sub-tag 0x22.
type ObjectArrayDump struct {
	ArrayObjectID       uint64
	StackTraceSerial    uint32
	ElementClassObjectID uint64
	Elements            []uint64
}

// PrimitiveArrayDump is heap sub-tag 0x23.
type PrimitiveArrayDump struct {
	ArrayObjectID    uint64
	StackTraceSerial uint32
	ElementType      BasicType
	Elements         []Value
}
