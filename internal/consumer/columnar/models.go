package columnar

// StringRow mirrors a decoded string constant-pool entry.
type StringRow struct {
	ID   uint64 `gorm:"column:id;primaryKey"`
	Text string `gorm:"column:text;type:text"`
}

func (StringRow) TableName() string { return "hprof_strings" }

// ClassRow mirrors a decoded class dump, one row per loaded class.
type ClassRow struct {
	ClassObjectID       uint64 `gorm:"column:class_object_id;primaryKey"`
	SuperClassObjectID  uint64 `gorm:"column:super_class_object_id"`
	ClassLoaderObjectID uint64 `gorm:"column:class_loader_object_id"`
	InstanceSize        uint32 `gorm:"column:instance_size"`
	FieldCount          int    `gorm:"column:field_count"`
}

func (ClassRow) TableName() string { return "hprof_classes" }

// InstanceRow mirrors a decoded instance dump. Field values are normalized
// into their own table (InstanceFieldRow) rather than packed into a column
// here.
type InstanceRow struct {
	ObjectID      uint64 `gorm:"column:object_id;primaryKey"`
	ClassObjectID uint64 `gorm:"column:class_object_id;index"`
	FieldCount    int    `gorm:"column:field_count"`
}

func (InstanceRow) TableName() string { return "hprof_instances" }

// InstanceFieldRow is one (name, type, value) triple of an instance dump,
// normalized out of InstanceDump.Fields so a field can be queried by name
// or type across every instance of a class.
type InstanceFieldRow struct {
	InstanceObjectID uint64 `gorm:"column:instance_object_id;index"`
	FieldName        string `gorm:"column:field_name"`
	FieldType        string `gorm:"column:field_type"`
	FieldValue       string `gorm:"column:field_value"`
}

func (InstanceFieldRow) TableName() string { return "hprof_instance_fields" }

// ObjectArrayRow mirrors a decoded object array dump.
type ObjectArrayRow struct {
	ArrayObjectID  uint64 `gorm:"column:array_object_id;primaryKey"`
	ElementClassID uint64 `gorm:"column:element_class_id"`
	ElementCount   int    `gorm:"column:element_count"`
}

func (ObjectArrayRow) TableName() string { return "hprof_object_arrays" }

// PrimitiveArrayRow mirrors a decoded primitive array dump.
type PrimitiveArrayRow struct {
	ArrayObjectID uint64 `gorm:"column:array_object_id;primaryKey"`
	ElementType   string `gorm:"column:element_type"`
	ElementCount  int    `gorm:"column:element_count"`
}

func (PrimitiveArrayRow) TableName() string { return "hprof_primitive_arrays" }

// HeapSummaryRow mirrors the single heap-summary record in a stream, if any.
type HeapSummaryRow struct {
	ID             uint   `gorm:"column:id;primaryKey"`
	LiveInstances  uint32 `gorm:"column:live_instances"`
	LiveBytes      uint32 `gorm:"column:live_bytes"`
	TotalInstances uint64 `gorm:"column:total_instances"`
	TotalBytes     uint64 `gorm:"column:total_bytes"`
}

func (HeapSummaryRow) TableName() string { return "hprof_heap_summary" }

// ThreadRow mirrors a decoded StartThread record.
type ThreadRow struct {
	ThreadSerial            uint32 `gorm:"column:thread_serial;primaryKey"`
	ThreadObjectID          uint64 `gorm:"column:thread_object_id"`
	StackTraceSerial        uint32 `gorm:"column:stack_trace_serial"`
	ThreadNameID            uint64 `gorm:"column:thread_name_id"`
	ThreadGroupNameID       uint64 `gorm:"column:thread_group_name_id"`
	ThreadParentGroupNameID uint64 `gorm:"column:thread_parent_group_name_id"`
}

func (ThreadRow) TableName() string { return "hprof_threads" }

// Root rows mirror one table per GC-root variant, named and shaped after
// the original project's per-root-variant export tables — each root kind
// carries different fields, so a single shared "roots" table would lose
// information a consumer might query on (which thread pinned an object,
// which JNI frame, etc).

// RootUnknownRow is GC root heap sub-tag 0xFF.
type RootUnknownRow struct {
	ObjectID uint64 `gorm:"column:object_id;primaryKey"`
}

func (RootUnknownRow) TableName() string { return "hprof_root_unknown" }

// RootJNIGlobalRow is GC root heap sub-tag 0x01.
type RootJNIGlobalRow struct {
	ObjectID       uint64 `gorm:"column:object_id;primaryKey"`
	JNIGlobalRefID uint64 `gorm:"column:jni_global_ref_id"`
}

func (RootJNIGlobalRow) TableName() string { return "hprof_root_jni_global" }

// RootJNILocalRow is GC root heap sub-tag 0x02.
type RootJNILocalRow struct {
	ObjectID     uint64 `gorm:"column:object_id;primaryKey"`
	ThreadSerial uint32 `gorm:"column:thread_serial"`
	FrameNumber  uint32 `gorm:"column:frame_number"`
}

func (RootJNILocalRow) TableName() string { return "hprof_root_jni_local" }

// RootJavaFrameRow is GC root heap sub-tag 0x03.
type RootJavaFrameRow struct {
	ObjectID     uint64 `gorm:"column:object_id;primaryKey"`
	ThreadSerial uint32 `gorm:"column:thread_serial"`
	FrameNumber  uint32 `gorm:"column:frame_number"`
}

func (RootJavaFrameRow) TableName() string { return "hprof_root_java_frame" }

// RootNativeStackRow is GC root heap sub-tag 0x04.
type RootNativeStackRow struct {
	ObjectID     uint64 `gorm:"column:object_id;primaryKey"`
	ThreadSerial uint32 `gorm:"column:thread_serial"`
}

func (RootNativeStackRow) TableName() string { return "hprof_root_native_stack" }

// RootStickyClassRow is GC root heap sub-tag 0x05.
type RootStickyClassRow struct {
	ObjectID uint64 `gorm:"column:object_id;primaryKey"`
}

func (RootStickyClassRow) TableName() string { return "hprof_root_sticky_class" }

// RootThreadBlockRow is GC root heap sub-tag 0x06.
type RootThreadBlockRow struct {
	ObjectID     uint64 `gorm:"column:object_id;primaryKey"`
	ThreadSerial uint32 `gorm:"column:thread_serial"`
}

func (RootThreadBlockRow) TableName() string { return "hprof_root_thread_block" }

// RootMonitorUsedRow is GC root heap sub-tag 0x07.
type RootMonitorUsedRow struct {
	ObjectID uint64 `gorm:"column:object_id;primaryKey"`
}

func (RootMonitorUsedRow) TableName() string { return "hprof_root_monitor_used" }

// RootThreadObjectRow is GC root heap sub-tag 0x08.
type RootThreadObjectRow struct {
	ObjectID         uint64 `gorm:"column:object_id;primaryKey"`
	ThreadSerial     uint32 `gorm:"column:thread_serial"`
	StackTraceSerial uint32 `gorm:"column:stack_trace_serial"`
}

func (RootThreadObjectRow) TableName() string { return "hprof_root_thread_obj" }
