// Package web builds Ops for the read-only HTTP fetch backend:
// dl_get (GET with optional range) and dl_head.
package web

import (
	"io"
	"strconv"

	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

// Opcode identifies a web verb, for metrics labelling and vtable dispatch.
type Opcode string

const (
	OpDLGet  Opcode = "dl_get"
	OpDLHead Opcode = "dl_head"
)

func newOp(opcode Opcode, method op.Method, w path.Web) *op.Op {
	return &op.Op{
		Opcode:       string(opcode),
		Method:       method,
		URLHost:      w.Host,
		URLPath:      w.DLPath,
		RequireHTTPS: false,
	}
}

// BuildDLGet constructs a dl_get Op, optionally ranged, streaming the
// response body into dst.
func BuildDLGet(w path.Web, dst op.DataStream, rangeOff, rangeLen int64) *op.Op {
	o := newOp(OpDLGet, op.MethodGET, w)
	if rangeLen > 0 {
		o.ReqHeaders.Set("Range", httpRange(rangeOff, rangeLen))
	}
	o.RespBody = dst
	o.Processor = bodyProcessor{dst: dst}
	return o
}

// BuildDLHead constructs a dl_head Op (size/metadata probe, no body).
func BuildDLHead(w path.Web) *op.Op {
	o := newOp(OpDLHead, op.MethodHEAD, w)
	o.Processor = statusOnlyProcessor{}
	return o
}

func httpRange(off, length int64) string {
	return "bytes=" + strconv.FormatInt(off, 10) + "-" + strconv.FormatInt(off+length-1, 10)
}

type statusOnlyProcessor struct{}

func (statusOnlyProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	return nil
}

type bodyProcessor struct{ dst op.DataStream }

func (p bodyProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	_, err := io.Copy(p.dst.Writer(), body)
	return err
}
