// Package op defines Op, the backend-agnostic request/response envelope
// that every builder, signer, and connection in elasto operates on.
package op

import (
	"io"
	"os"

	"github.com/elasto/elasto/internal/errz"
)

// StreamKind tags which variant of DataStream is in use.
type StreamKind int

const (
	// StreamNone carries no body.
	StreamNone StreamKind = iota
	// StreamIOV is an in-memory buffer.
	StreamIOV
	// StreamFile is backed by an open *os.File.
	StreamFile
	// StreamCB is driven by caller-supplied producer/consumer callbacks.
	StreamCB
)

// OutCB is invoked by the transport to pull request body bytes starting at
// streamOff, requesting up to need bytes. It returns the slice to send and
// its length; a short slice with err == nil signals end of stream only when
// the stream's declared Len has been reached.
type OutCB func(streamOff int64, need int) (buf []byte, n int, err error)

// InCB is invoked by the transport as response body bytes arrive. streamOff
// is the offset of buf[:n] within the logical stream.
type InCB func(streamOff int64, n int, buf []byte) error

// DataStream is a sum type over NONE, IOV, FILE and CB variants.
// Exactly one of the typed fields is meaningful, selected by Kind.
type DataStream struct {
	Kind StreamKind

	// IOV fields.
	Buf []byte
	Off int64
	Len int64

	// FILE fields.
	File   *os.File
	FileOff int64
	FileLen int64

	// CB fields.
	CBLen int64
	Out   OutCB
	In    InCB
}

// None returns the empty data stream.
func None() DataStream { return DataStream{Kind: StreamNone} }

// IOV wraps an in-memory buffer as a data stream. off must be <= len(buf).
func IOV(buf []byte, off int64) DataStream {
	return DataStream{Kind: StreamIOV, Buf: buf, Off: off, Len: int64(len(buf))}
}

// FileStream wraps an open file as a data stream for the given logical
// range. The fd must already be open for the direction (read for request
// bodies, write for response bodies).
func FileStream(f *os.File, off, length int64) DataStream {
	return DataStream{Kind: StreamFile, File: f, FileOff: off, FileLen: length}
}

// CB wraps caller callbacks as a data stream. Exactly one of out/in should
// be non-nil depending on whether this is a request or response stream.
func CB(length int64, out OutCB, in InCB) DataStream {
	return DataStream{Kind: StreamCB, CBLen: length, Out: out, In: in}
}

// Size returns the logical length of the stream, regardless of variant.
func (d DataStream) Size() int64 {
	switch d.Kind {
	case StreamIOV:
		return d.Len - d.Off
	case StreamFile:
		return d.FileLen
	case StreamCB:
		return d.CBLen
	default:
		return 0
	}
}

// monoOff asserts the monotonically non-decreasing stream_off contract of
// the CB adapters; violating it is a programming error, not a runtime one.
type monoOff struct {
	last int64
	seen bool
}

func (m *monoOff) check(off int64) {
	if m.seen && off < m.last {
		panic("op: data stream offset went backwards")
	}
	m.last = off
	m.seen = true
}

// Reader adapts a request-direction DataStream to an io.Reader, so the
// connection layer can hand it to any streaming HTTP client body sink
// without caring which variant produced the bytes.
func (d DataStream) Reader() io.Reader {
	switch d.Kind {
	case StreamNone:
		return io.MultiReader() // zero-length reader
	case StreamIOV:
		return io.NewSectionReader(bytesReaderAt(d.Buf), d.Off, d.Len-d.Off)
	case StreamFile:
		return io.NewSectionReader(d.File, d.FileOff, d.FileLen)
	case StreamCB:
		return &cbReader{ds: d}
	default:
		return io.MultiReader()
	}
}

// bytesReaderAt adapts a []byte to io.ReaderAt without copying.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// cbReader drives a StreamCB's OutCB to satisfy io.Reader, enforcing
// monotonic stream_off.
type cbReader struct {
	ds  DataStream
	off int64
	mono monoOff
}

func (r *cbReader) Read(p []byte) (int, error) {
	if r.off >= r.ds.CBLen {
		return 0, io.EOF
	}
	need := len(p)
	if rem := r.ds.CBLen - r.off; int64(need) > rem {
		need = int(rem)
	}
	r.mono.check(r.off)
	buf, n, err := r.ds.Out(r.off, need)
	if err != nil {
		return 0, errz.Wrap(errz.KindIO, err, "data stream producer callback failed")
	}
	copy(p, buf[:n])
	r.off += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Writer adapts a response-direction DataStream to an io.Writer.
func (d DataStream) Writer() io.Writer {
	switch d.Kind {
	case StreamNone:
		return io.Discard
	case StreamIOV:
		return &iovWriter{buf: d.Buf, off: d.Off}
	case StreamFile:
		return &fileWriter{f: d.File, off: d.FileOff}
	case StreamCB:
		return &cbWriter{ds: d}
	default:
		return io.Discard
	}
}

type iovWriter struct {
	buf []byte
	off int64
}

func (w *iovWriter) Write(p []byte) (int, error) {
	if w.off+int64(len(p)) > int64(len(w.buf)) {
		return 0, errz.New(errz.KindDataTooLarge, "response body exceeds caller buffer")
	}
	n := copy(w.buf[w.off:], p)
	w.off += int64(n)
	return n, nil
}

type fileWriter struct {
	f   *os.File
	off int64
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.off)
	w.off += int64(n)
	if err != nil {
		return n, errz.Wrap(errz.KindIO, err, "writing response body to file")
	}
	return n, nil
}

type cbWriter struct {
	ds   DataStream
	off  int64
	mono monoOff
}

func (w *cbWriter) Write(p []byte) (int, error) {
	w.mono.check(w.off)
	if err := w.ds.In(w.off, len(p), p); err != nil {
		return 0, errz.Wrap(errz.KindIO, err, "data stream consumer callback failed")
	}
	w.off += int64(len(p))
	return len(p), nil
}
