package hprof

import (
	"context"
	"io"
)

// Decoder drives the HPROF outer frame loop: it reads the file header, then
// repeatedly reads a (tag, timestamp-delta, body-length) frame, dispatches
// to the matching record decoder bounded to body-length bytes, and verifies
// the decoder consumed exactly that many bytes.
//
// Decoder is single-threaded and stateless beyond the header-derived
// identifier size and the eager class-dump index used to decode instance
// dumps; it never retains borrowed slices past a Handler call.
type Decoder struct {
	r              *Reader
	h              Handler
	classes        *classIndex
	header         Header
	idSizeOverride int
	lenientFrames  bool
}

// NewDecoder constructs a Decoder reading from r and delivering records to
// h. Call Run to drive it to completion.
func NewDecoder(r io.Reader, h Handler) *Decoder {
	return &Decoder{
		r:       NewReader(r),
		h:       h,
		classes: newClassIndex(),
	}
}

// SetIDSizeOverride forces the identifier width used for every identifier
// field, instead of trusting the header's declared id-size. It is a
// diagnostic escape hatch for malformed producers, not something a
// correct stream ever needs; zero (the default) trusts the header.
func (d *Decoder) SetIDSizeOverride(size int) {
	d.idSizeOverride = size
}

// SetLenientFrameLength, when true, downgrades a top-level frame-length
// mismatch from fatal to skip-and-continue: the decoder seeks to the
// frame's declared end and keeps going instead of returning a
// FormatError. Off by default — spec correctness requires strict
// equality; this exists only to recover partial data from a malformed
// producer.
func (d *Decoder) SetLenientFrameLength(lenient bool) {
	d.lenientFrames = lenient
}

// Run reads the header, then decodes frames until a clean EOF at a frame
// boundary. It returns nil on clean EOF, or the first fatal error
// (TruncatedStreamError, *FormatError, *IOError, *HandlerAbortError)
// encountered.
func (d *Decoder) Run(ctx context.Context) error {
	if err := d.readHeader(); err != nil {
		return err
	}
	if err := d.callHandler(d.h.Header(d.header)); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := d.decodeFrame()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func (d *Decoder) readHeader() error {
	format, err := d.r.ReadNullTerminatedASCII()
	if err != nil {
		return err
	}
	idSize, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	if d.idSizeOverride > 0 {
		d.r.SetIDSize(d.idSizeOverride)
	} else {
		d.r.SetIDSize(int(idSize))
	}

	timestamp, err := d.r.ReadU64()
	if err != nil {
		return err
	}

	d.header = Header{
		FormatName: format,
		IDSize:     int(idSize),
		Timestamp:  timestamp,
	}
	return nil
}

// decodeFrame reads and dispatches exactly one top-level frame. It returns
// ok=false (with a nil error) on a clean EOF at the frame boundary.
func (d *Decoder) decodeFrame() (ok bool, err error) {
	tagByte, err := d.r.ReadU8()
	if err != nil {
		if te, isTrunc := err.(*TruncatedStreamError); isTrunc && d.atCleanFrameBoundary(te) {
			return false, nil
		}
		return false, err
	}
	tag := RecordTag(tagByte)

	if _, err := d.r.ReadU32(); err != nil { // timestamp delta, not surfaced beyond header
		return false, err
	}
	length, err := d.r.ReadU32()
	if err != nil {
		return false, err
	}

	frameEnd := d.r.Offset() + int64(length)
	d.r.PushFrame(length)
	if derr := d.dispatch(tag, length); derr != nil {
		return false, derr
	}
	if perr := d.r.PopFrame(int(tag)); perr != nil {
		if d.lenientFrames && IsFormatError(perr) {
			if remaining := frameEnd - d.r.Offset(); remaining > 0 {
				if skipErr := d.r.Skip(remaining); skipErr != nil {
					return false, skipErr
				}
			}
			return true, nil
		}
		return false, perr
	}
	return true, nil
}

// atCleanFrameBoundary reports whether te represents an EOF with nothing
// read for the tag byte itself, i.e. a legitimate end of stream rather than
// a mid-field truncation.
func (d *Decoder) atCleanFrameBoundary(te *TruncatedStreamError) bool {
	return te.Err == io.EOF
}

func (d *Decoder) dispatch(tag RecordTag, length uint32) error {
	switch tag {
	case TagString:
		return d.decodeString(length)
	case TagLoadClass:
		return d.decodeLoadClass()
	case TagUnloadClass:
		return d.decodeUnloadClass()
	case TagStackFrame:
		return d.decodeStackFrame()
	case TagStackTrace:
		return d.decodeStackTrace()
	case TagAllocSites:
		return d.decodeAllocSites()
	case TagHeapSummary:
		return d.decodeHeapSummary()
	case TagStartThread:
		return d.decodeStartThread()
	case TagEndThread:
		return d.decodeEndThread()
	case TagCPUSamples:
		return d.decodeCPUSamples()
	case TagControlSettings:
		return d.decodeControlSettings()
	case TagHeapDump, TagHeapDumpSegment:
		return d.decodeHeapDump(tag == TagHeapDumpSegment, length)
	case TagHeapDumpEnd:
		if length != 0 {
			return d.r.Skip(int64(length))
		}
		return d.callHandler(d.h.HeapDumpEnd())
	default:
		// Unknown top-level tag: skip-and-continue, no callback. This
		// keeps the decoder forward-compatible with vendor extensions.
		return d.r.Skip(int64(length))
	}
}

func (d *Decoder) callHandler(err error) error {
	if err == nil {
		return nil
	}
	return &HandlerAbortError{Err: err}
}

func (d *Decoder) decodeString(length uint32) error {
	textLen := int64(length) - int64(d.r.IDSize())
	if textLen < 0 {
		return &FormatError{Reason: ReasonFrameLengthMismatch, Tag: int(TagString), Offset: d.r.Offset()}
	}
	id, err := d.r.ReadID()
	if err != nil {
		return err
	}
	raw, err := d.r.ReadExact(int(textLen))
	if err != nil {
		return err
	}
	return d.callHandler(d.h.String(StringRecord{ID: id, Text: string(raw)}))
}

func (d *Decoder) decodeLoadClass() error {
	serial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	classObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	nameID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.LoadClass(LoadClassRecord{
		ClassSerial:      serial,
		ClassObjectID:    classObj,
		StackTraceSerial: stackSerial,
		ClassNameID:      nameID,
	}))
}

func (d *Decoder) decodeUnloadClass() error {
	serial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.UnloadClass(UnloadClassRecord{ClassSerial: serial}))
}

func (d *Decoder) decodeStackFrame() error {
	frameID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	methodName, err := d.r.ReadID()
	if err != nil {
		return err
	}
	methodSig, err := d.r.ReadID()
	if err != nil {
		return err
	}
	sourceFile, err := d.r.ReadID()
	if err != nil {
		return err
	}
	classSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	line, err := d.r.ReadI32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.StackFrame(StackFrameRecord{
		FrameID:           frameID,
		MethodNameID:      methodName,
		MethodSignatureID: methodSig,
		SourceFileNameID:  sourceFile,
		ClassSerial:       classSerial,
		LineNumber:        line,
	}))
}

func (d *Decoder) decodeStackTrace() error {
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	frameCount, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	frames := make([]uint64, 0, frameCount)
	for i := uint32(0); i < frameCount; i++ {
		id, err := d.r.ReadID()
		if err != nil {
			return err
		}
		frames = append(frames, id)
	}
	return d.callHandler(d.h.StackTrace(StackTraceRecord{
		StackTraceSerial: stackSerial,
		ThreadSerial:     threadSerial,
		FrameIDs:         frames,
	}))
}

func (d *Decoder) decodeAllocSites() error {
	bitMask, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	cutoff, err := d.r.ReadF32()
	if err != nil {
		return err
	}
	liveBytes, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	liveInstances, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	totalBytes, err := d.r.ReadU64()
	if err != nil {
		return err
	}
	totalInstances, err := d.r.ReadU64()
	if err != nil {
		return err
	}
	siteCount, err := d.r.ReadU32()
	if err != nil {
		return err
	}

	sites := make([]AllocSite, 0, siteCount)
	for i := uint32(0); i < siteCount; i++ {
		isArray, err := d.r.ReadU8()
		if err != nil {
			return err
		}
		classSerial, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		stackSerial, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		sLive, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		sLiveInst, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		sTotal, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		sTotalInst, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		sites = append(sites, AllocSite{
			IsArray:          isArray,
			ClassSerial:      classSerial,
			StackTraceSerial: stackSerial,
			LiveBytes:        sLive,
			LiveInstances:    sLiveInst,
			TotalBytes:       sTotal,
			TotalInstances:   sTotalInst,
		})
	}

	return d.callHandler(d.h.AllocSites(AllocSitesRecord{
		BitMask:                 bitMask,
		CutoffRatio:             cutoff,
		TotalLiveBytes:          liveBytes,
		TotalLiveInstances:      liveInstances,
		TotalBytesAllocated:     totalBytes,
		TotalInstancesAllocated: totalInstances,
		Sites:                   sites,
	}))
}

func (d *Decoder) decodeHeapSummary() error {
	liveBytes, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	liveInstances, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	totalBytes, err := d.r.ReadU64()
	if err != nil {
		return err
	}
	totalInstances, err := d.r.ReadU64()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.HeapSummary(HeapSummaryRecord{
		LiveBytes:      liveBytes,
		LiveInstances:  liveInstances,
		TotalBytes:     totalBytes,
		TotalInstances: totalInstances,
	}))
}

func (d *Decoder) decodeStartThread() error {
	threadSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	threadObj, err := d.r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	nameID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	groupID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	parentGroupID, err := d.r.ReadID()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.StartThread(StartThreadRecord{
		ThreadSerial:            threadSerial,
		ThreadObjectID:          threadObj,
		StackTraceSerial:        stackSerial,
		ThreadNameID:            nameID,
		ThreadGroupNameID:       groupID,
		ThreadParentGroupNameID: parentGroupID,
	}))
}

func (d *Decoder) decodeEndThread() error {
	serial, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.EndThread(EndThreadRecord{ThreadSerial: serial}))
}

func (d *Decoder) decodeCPUSamples() error {
	total, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	count, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	samples := make([]CPUSample, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		stackSerial, err := d.r.ReadU32()
		if err != nil {
			return err
		}
		samples = append(samples, CPUSample{NumSamples: n, StackTraceSerial: stackSerial})
	}
	return d.callHandler(d.h.CPUSamples(CPUSamplesRecord{TotalSamples: total, Samples: samples}))
}

func (d *Decoder) decodeControlSettings() error {
	bitMask, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	depth, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	return d.callHandler(d.h.ControlSettings(ControlSettingsRecord{BitMask: bitMask, StackTraceDepth: depth}))
}
