package hprof

// decodeHeapDump handles both a plain heap dump (tag 0x0C) and a heap dump
// segment (tag 0x1C): it runs the nested sub-record loop until the outer
// frame's declared length is exhausted, since there is no inner
// termination marker.
func (d *Decoder) decodeHeapDump(segment bool, length uint32) error {
	if err := d.callHandler(d.h.HeapDumpBegin(segment)); err != nil {
		return err
	}

	for d.r.RemainingInFrame() > 0 {
		subTagByte, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		if err := d.dispatchHeapSubRecord(HeapTag(subTagByte)); err != nil {
			return err
		}
	}

	return d.callHandler(d.h.HeapDumpEnd())
}

func (d *Decoder) dispatchHeapSubRecord(tag HeapTag) error {
	switch tag {
	case HeapTagRootUnknown:
		return d.decodeRootUnknown()
	case HeapTagRootJNIGlobal:
		return d.decodeRootJNIGlobal()
	case HeapTagRootJNILocal:
		return d.decodeRootJNILocal()
	case HeapTagRootJavaFrame:
		return d.decodeRootJavaFrame()
	case HeapTagRootNativeStack:
		return d.decodeRootNativeStack()
	case HeapTagRootStickyClass:
		return d.decodeRootStickyClass()
	case HeapTagRootThreadBlock:
		return d.decodeRootThreadBlock()
	case HeapTagRootMonitorUsed:
		return d.decodeRootMonitorUsed()
	case HeapTagRootThreadObject:
		return d.decodeRootThreadObject()
	case HeapTagClassDump:
		return d.decodeClassDump()
	case HeapTagInstanceDump:
		return d.decodeInstanceDump()
	case HeapTagObjectArrayDump:
		return d.decodeObjectArrayDump()
	case HeapTagPrimArrayDump:
		return d.decodePrimitiveArrayDump()
	default:
		// Sub-records carry no length prefix, so an unrecognized tag
		// leaves the cursor with no way to know how many bytes to
		// skip. Unlike an unknown top-level tag, this is fatal.
		return &FormatError{
			Reason: ReasonUnknownHeapSubTag,
			Tag:    int(tag),
			Offset: d.r.Offset(),
		}
	}
}

func (d *Decoder) decodeRootUnknown() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootUnknown(RootUnknown{ObjectID: id}))
}

func (d *Decoder) decodeRootJNIGlobal() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	refID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootJNIGlobal(RootJNIGlobal{ObjectID: id, JNIGlobalRefID: refID}))
}

func (d *Decoder) decodeRootJNILocal() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	frameNumber, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootJNILocal(RootJNILocal{ObjectID: id, ThreadSerial: threadSerial, FrameNumber: frameNumber}))
}

func (d *Decoder) decodeRootJavaFrame() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	frameNumber, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootJavaFrame(RootJavaFrame{ObjectID: id, ThreadSerial: threadSerial, FrameNumber: frameNumber}))
}

func (d *Decoder) decodeRootNativeStack() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootNativeStack(RootNativeStack{ObjectID: id, ThreadSerial: threadSerial}))
}

func (d *Decoder) decodeRootStickyClass() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootStickyClass(RootStickyClass{ObjectID: id}))
}

func (d *Decoder) decodeRootThreadBlock() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootThreadBlock(RootThreadBlock{ObjectID: id, ThreadSerial: threadSerial}))
}

func (d *Decoder) decodeRootMonitorUsed() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootMonitorUsed(RootMonitorUsed{ObjectID: id}))
}

func (d *Decoder) decodeRootThreadObject() error {
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.RootThreadObject(RootThreadObject{ObjectID: id, ThreadSerial: threadSerial, StackTraceSerial: stackSerial}))
}

func (d *Decoder) decodeClassDump() error {
	classObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	superClass, err := d.r.ReadID()
	if err != nil {
		return err
	}
	classLoader, err := d.r.ReadID()
	if err != nil {
		return err
	}
	signers, err := d.r.ReadID()
	if err != nil {
		return err
	}
	protectionDomain, err := d.r.ReadID()
	if err != nil {
		return err
	}
	if _, err := d.r.ReadID(); err != nil { // reserved 1
		return err
	}
	if _, err := d.r.ReadID(); err != nil { // reserved 2
		return err
	}
	instanceSize, err := d.r.ReadU32()
	if err != nil {
		return err
	}

	constantCount, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	constants := make([]Constant, 0, constantCount)
	for i := uint16(0); i < constantCount; i++ {
		index, err := d.r.ReadU16()
		if err != nil {
			return err
		}
		typeTag, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		v, err := ReadValue(d.r, BasicType(typeTag))
		if err != nil {
			return err
		}
		constants = append(constants, Constant{PoolIndex: index, Value: v})
	}

	staticCount, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	statics := make([]StaticField, 0, staticCount)
	for i := uint16(0); i < staticCount; i++ {
		nameID, err := d.r.ReadID()
		if err != nil {
			return err
		}
		typeTag, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		v, err := ReadValue(d.r, BasicType(typeTag))
		if err != nil {
			return err
		}
		statics = append(statics, StaticField{NameID: nameID, Value: v})
	}

	fieldCount, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	fields := make([]FieldDescriptor, 0, fieldCount)
	for i := uint16(0); i < fieldCount; i++ {
		nameID, err := d.r.ReadID()
		if err != nil {
			return err
		}
		typeTag, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		fields = append(fields, FieldDescriptor{NameID: nameID, Type: BasicType(typeTag)})
	}

	cd := ClassDump{
		ClassObjectID:            classObj,
		StackTraceSerial:         stackSerial,
		SuperClassObjectID:       superClass,
		ClassLoaderObjectID:      classLoader,
		SignersObjectID:          signers,
		ProtectionDomainObjectID: protectionDomain,
		InstanceSize:             instanceSize,
		Constants:                constants,
		Statics:                  statics,
		InstanceFields:           fields,
	}
	d.classes.add(&cd)

	return d.callHandler(d.h.ClassDump(cd))
}

func (d *Decoder) decodeInstanceDump() error {
	objID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	classObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	dataSize, err := d.r.ReadU32()
	if err != nil {
		return err
	}

	descriptors, ferr := d.classes.fields(classObj)
	if ferr != nil {
		return ferr
	}

	d.r.PushFrame(dataSize)
	fields := make([]InstanceField, 0, len(descriptors))
	for _, fd := range descriptors {
		v, err := ReadValue(d.r, fd.Type)
		if err != nil {
			return err
		}
		fields = append(fields, InstanceField{FieldDescriptor: fd, Value: v})
	}
	if err := d.r.PopFrame(int(HeapTagInstanceDump)); err != nil {
		return err
	}

	return d.callHandler(d.h.InstanceDump(InstanceDump{
		ObjectID:         objID,
		StackTraceSerial: stackSerial,
		ClassObjectID:    classObj,
		Fields:           fields,
	}))
}

func (d *Decoder) decodeObjectArrayDump() error {
	arrayObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	numElements, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	elemClass, err := d.r.ReadID()
	if err != nil {
		return err
	}
	elements := make([]uint64, 0, numElements)
	for i := uint32(0); i < numElements; i++ {
		id, err := d.r.ReadID()
		if err != nil {
			return err
		}
		elements = append(elements, id)
	}
	return d.callHandler(d.h.ObjectArrayDump(ObjectArrayDump{
		ArrayObjectID:        arrayObj,
		StackTraceSerial:     stackSerial,
		ElementClassObjectID: elemClass,
		Elements:             elements,
	}))
}

func (d *Decoder) decodePrimitiveArrayDump() error {
	arrayObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	numElements, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	elemTypeByte, err := d.r.ReadU8()
	if err != nil {
		return err
	}
	elemType := BasicType(elemTypeByte)

	elements := make([]Value, 0, numElements)
	for i := uint32(0); i < numElements; i++ {
		v, err := ReadValue(d.r, elemType)
		if err != nil {
			return err
		}
		elements = append(elements, v)
	}
	return d.callHandler(d.h.PrimitiveArrayDump(PrimitiveArrayDump{
		ArrayObjectID:    arrayObj,
		StackTraceSerial: stackSerial,
		ElementType:      elemType,
		Elements:         elements,
	}))
}
