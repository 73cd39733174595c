package hprof

// Handler is the capability set a consumer implements to receive decoded
// HPROF records. Every method has a well-defined no-op default via
// NoopHandler, so concrete consumers embed it and override only the
// notifications they care about.
//
// Handler methods are called synchronously from the decode loop, in the
// exact order records appear in the stream. A method may return a non-nil
// error to abort decoding; the decoder wraps it in a HandlerAbortError and
// stops. A Handler must not retain slices or strings passed to it beyond
// the call unless the method doc says otherwise — all such values are safe
// to retain since the decoder never reuses backing arrays across calls,
// but future revisions may change that, so treat them as borrowed.
type Handler interface {
	Header(h Header) error

	String(r StringRecord) error
	LoadClass(r LoadClassRecord) error
	UnloadClass(r UnloadClassRecord) error
	StackFrame(r StackFrameRecord) error
	StackTrace(r StackTraceRecord) error
	AllocSites(r AllocSitesRecord) error
	HeapSummary(r HeapSummaryRecord) error
	StartThread(r StartThreadRecord) error
	EndThread(r EndThreadRecord) error
	CPUSamples(r CPUSamplesRecord) error
	ControlSettings(r ControlSettingsRecord) error

	HeapDumpBegin(segment bool) error
	HeapDumpEnd() error

	RootUnknown(r RootUnknown) error
	RootJNIGlobal(r RootJNIGlobal) error
	RootJNILocal(r RootJNILocal) error
	RootJavaFrame(r RootJavaFrame) error
	RootNativeStack(r RootNativeStack) error
	RootStickyClass(r RootStickyClass) error
	RootThreadBlock(r RootThreadBlock) error
	RootMonitorUsed(r RootMonitorUsed) error
	RootThreadObject(r RootThreadObject) error

	ClassDump(r ClassDump) error
	InstanceDump(r InstanceDump) error
	ObjectArrayDump(r ObjectArrayDump) error
	PrimitiveArrayDump(r PrimitiveArrayDump) error
}

// NoopHandler implements Handler with every method a no-op. Embed it in a
// concrete consumer and override only the methods that matter.
type NoopHandler struct{}

var _ Handler = NoopHandler{}

func (NoopHandler) Header(Header) error                        { return nil }
func (NoopHandler) String(StringRecord) error                  { return nil }
func (NoopHandler) LoadClass(LoadClassRecord) error             { return nil }
func (NoopHandler) UnloadClass(UnloadClassRecord) error         { return nil }
func (NoopHandler) StackFrame(StackFrameRecord) error           { return nil }
func (NoopHandler) StackTrace(StackTraceRecord) error           { return nil }
func (NoopHandler) AllocSites(AllocSitesRecord) error           { return nil }
func (NoopHandler) HeapSummary(HeapSummaryRecord) error         { return nil }
func (NoopHandler) StartThread(StartThreadRecord) error         { return nil }
func (NoopHandler) EndThread(EndThreadRecord) error             { return nil }
func (NoopHandler) CPUSamples(CPUSamplesRecord) error           { return nil }
func (NoopHandler) ControlSettings(ControlSettingsRecord) error { return nil }

func (NoopHandler) HeapDumpBegin(bool) error { return nil }
func (NoopHandler) HeapDumpEnd() error       { return nil }

func (NoopHandler) RootUnknown(RootUnknown) error           { return nil }
func (NoopHandler) RootJNIGlobal(RootJNIGlobal) error       { return nil }
func (NoopHandler) RootJNILocal(RootJNILocal) error         { return nil }
func (NoopHandler) RootJavaFrame(RootJavaFrame) error       { return nil }
func (NoopHandler) RootNativeStack(RootNativeStack) error   { return nil }
func (NoopHandler) RootStickyClass(RootStickyClass) error   { return nil }
func (NoopHandler) RootThreadBlock(RootThreadBlock) error   { return nil }
func (NoopHandler) RootMonitorUsed(RootMonitorUsed) error   { return nil }
func (NoopHandler) RootThreadObject(RootThreadObject) error { return nil }

func (NoopHandler) ClassDump(ClassDump) error                   { return nil }
func (NoopHandler) InstanceDump(InstanceDump) error             { return nil }
func (NoopHandler) ObjectArrayDump(ObjectArrayDump) error       { return nil }
func (NoopHandler) PrimitiveArrayDump(PrimitiveArrayDump) error { return nil }
