// Package hprof implements a streaming decoder for the binary heap-profile
// format emitted by managed-runtime memory profilers (HPROF).
//
// The package is organized by concern rather than by file-per-type:
//
//	types.go      - record and value types shared by the decoder and its callers
//	reader.go     - buffered big-endian primitive reader, identifier-width aware
//	values.go     - basic-type-tag driven value decoding
//	handler.go    - the Handler capability set and its no-op default
//	errors.go     - the error taxonomy (TruncatedStream, FormatError, IOError, HandlerAbort)
//	decoder.go    - the outer frame loop and top-level record decoders
//	heapdump.go   - the nested heap-dump sub-record loop
//	classindex.go - the eager classObjId -> field-descriptor index
//
// The decoder is single-threaded and makes no attempt at random access,
// cross-reference resolution, or re-emission of the input. Those concerns
// belong to whatever Handler implementation is driving it.
package hprof
