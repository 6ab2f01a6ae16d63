// Package s3 builds Ops for the Amazon S3 backend.
package s3

import (
	"bytes"
	"io"
	"strconv"

	"github.com/aws/smithy-go/encoding/httpbinding"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
	"github.com/elasto/elasto/internal/xmlfinder"
)

// Opcode identifies an s3 verb, for metrics labelling and vtable dispatch.
type Opcode string

const (
	OpSvcList       Opcode = "svc_list"
	OpBktCreate     Opcode = "bkt_create"
	OpBktDelete     Opcode = "bkt_del"
	OpBktList       Opcode = "bkt_list"
	OpBktLocation   Opcode = "bkt_location_get"
	OpObjPut        Opcode = "obj_put"
	OpObjGet        Opcode = "obj_get"
	OpObjHead       Opcode = "obj_head"
	OpObjDelete     Opcode = "obj_del"
	OpObjCopy       Opcode = "obj_cp"
	OpMpStart       Opcode = "mp_start"
	OpMpDone        Opcode = "mp_done"
	OpMpAbort       Opcode = "mp_abort"
	OpPartPut       Opcode = "part_put"
)

func escapeSeg(s string) string {
	return httpbinding.EscapePath(s, false)
}

func objectURL(s path.S3) string {
	switch s.Kind {
	case path.S3Bucket:
		return "/" + escapeSeg(s.Bucket)
	case path.S3Object:
		return "/" + escapeSeg(s.Bucket) + "/" + escapeSeg(s.Object)
	default:
		return "/"
	}
}

func newOp(opcode Opcode, method op.Method, url string) *op.Op {
	return &op.Op{Opcode: string(opcode), Method: method, URLPath: url, RedirectParser: parseRedirectEndpoint}
}

// parseRedirectEndpoint extracts the "<Error><Endpoint>new-host</Endpoint>
// </Error>" field S3 sends in the body of a 301 response. It is the only
// op.Op.RedirectParser implementation in the tree, since only the S3
// backend ever redirects.
func parseRedirectEndpoint(body []byte) (string, bool) {
	var endpoint string
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/Error/Endpoint", Kind: xmlfinder.ConsumeString, StringOut: &endpoint})
	if err := reg.Walk(bytes.NewReader(body)); err != nil {
		return "", false
	}
	return endpoint, endpoint != ""
}

// BucketEntry is one <Bucket> element of a svc_list response.
type BucketEntry struct {
	Name         string
	CreationDate string
}

// SvcListResult is the decoded response of svc_list.
type SvcListResult struct {
	Buckets []BucketEntry
}

// BuildSvcList lists every bucket owned by the caller's credentials.
func BuildSvcList(out *SvcListResult) *op.Op {
	o := newOp(OpSvcList, op.MethodGET, "/")
	o.Processor = svcListProcessor{out: out}
	return o
}

// BuildBktCreate creates a bucket. When region is non-empty and not the
// default ("us-east-1"), a CreateBucketConfiguration body carrying the
// LocationConstraint is sent; otherwise no body.
func BuildBktCreate(s path.S3, region string) (*op.Op, error) {
	if s.Kind != path.S3Bucket {
		return nil, errz.New(errz.KindInvalidArgument, "bkt_create requires a bucket path")
	}
	o := newOp(OpBktCreate, op.MethodPUT, objectURL(s))
	if region != "" && region != "us-east-1" {
		body := []byte(`<CreateBucketConfiguration><LocationConstraint>` + region + `</LocationConstraint></CreateBucketConfiguration>`)
		o.ReqBody = op.IOV(body, 0)
	}
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildBktDelete deletes an empty bucket.
func BuildBktDelete(s path.S3) (*op.Op, error) {
	if s.Kind != path.S3Bucket {
		return nil, errz.New(errz.KindInvalidArgument, "bkt_del requires a bucket path")
	}
	o := newOp(OpBktDelete, op.MethodDELETE, objectURL(s))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// ObjectEntry is one <Contents> element of a bkt_list response.
type ObjectEntry struct {
	Key          string
	Size         int64
	ETag         string
	LastModified string
}

// BktListResult is the decoded response of bkt_list.
type BktListResult struct {
	Objects     []ObjectEntry
	IsTruncated bool
	NextMarker  string
}

// BuildBktList lists objects in a bucket, optionally scoped by prefix and
// continuing from a previous marker.
func BuildBktList(s path.S3, prefix, marker string, out *BktListResult) (*op.Op, error) {
	if s.Kind != path.S3Bucket {
		return nil, errz.New(errz.KindInvalidArgument, "bkt_list requires a bucket path")
	}
	o := newOp(OpBktList, op.MethodGET, objectURL(s))
	if prefix != "" {
		o.AddQuery("prefix", prefix)
	}
	if marker != "" {
		o.AddQuery("marker", marker)
	}
	o.Processor = bktListProcessor{out: out}
	return o, nil
}

// BuildBktLocationGet fetches the bucket's region constraint.
func BuildBktLocationGet(s path.S3, out *string) (*op.Op, error) {
	if s.Kind != path.S3Bucket {
		return nil, errz.New(errz.KindInvalidArgument, "bkt_location_get requires a bucket path")
	}
	o := newOp(OpBktLocation, op.MethodGET, objectURL(s))
	o.AddQuery("location", "")
	o.Processor = locationProcessor{out: out}
	return o, nil
}

// BuildObjPut constructs a single-shot object PUT (the multipart uploader
// handles writes too large for one request).
func BuildObjPut(s path.S3, body op.DataStream, contentType string) (*op.Op, error) {
	if s.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "obj_put requires an object path")
	}
	o := newOp(OpObjPut, op.MethodPUT, objectURL(s))
	o.ReqBody = body
	if contentType != "" {
		o.ReqHeaders.Set("Content-Type", contentType)
	}
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildObjGet constructs an object GET, optionally ranged.
func BuildObjGet(s path.S3, dst op.DataStream, rangeOff, rangeLen int64) (*op.Op, error) {
	if s.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "obj_get requires an object path")
	}
	o := newOp(OpObjGet, op.MethodGET, objectURL(s))
	if rangeLen > 0 {
		o.ReqHeaders.Set("Range", httpRange(rangeOff, rangeLen))
	}
	o.RespBody = dst
	o.Processor = bodyProcessor{dst: dst}
	return o, nil
}

// BuildObjHead constructs an object HEAD.
func BuildObjHead(s path.S3) (*op.Op, error) {
	if s.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "obj_head requires an object path")
	}
	o := newOp(OpObjHead, op.MethodHEAD, objectURL(s))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildObjDelete constructs an object DELETE.
func BuildObjDelete(s path.S3) (*op.Op, error) {
	if s.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "obj_del requires an object path")
	}
	o := newOp(OpObjDelete, op.MethodDELETE, objectURL(s))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildObjCopy starts a server-side copy (sync-or-async, caller polls
// obj_head for completion).
func BuildObjCopy(dst, src path.S3) (*op.Op, error) {
	if dst.Kind != path.S3Object || src.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "obj_cp requires object paths on both sides")
	}
	o := newOp(OpObjCopy, op.MethodPUT, objectURL(dst))
	o.ReqHeaders.Set("x-amz-copy-source", "/"+escapeSeg(src.Bucket)+"/"+escapeSeg(src.Object))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildMpStart initiates a multipart upload.
func BuildMpStart(s path.S3, uploadID *string) (*op.Op, error) {
	if s.Kind != path.S3Object {
		return nil, errz.New(errz.KindInvalidArgument, "mp_start requires an object path")
	}
	o := newOp(OpMpStart, op.MethodPOST, objectURL(s))
	o.AddQuery("uploads", "")
	o.Processor = mpStartProcessor{out: uploadID}
	return o, nil
}

// BuildPartPut uploads one multipart part.
func BuildPartPut(s path.S3, uploadID string, partNumber int, body op.DataStream) (*op.Op, error) {
	o := newOp(OpPartPut, op.MethodPUT, objectURL(s))
	o.AddQuery("partNumber", strconv.Itoa(partNumber))
	o.AddQuery("uploadId", uploadID)
	o.ReqBody = body
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// CompletedPart is one entry in a mp_done CompleteMultipartUpload body.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// BuildMpDone commits a multipart upload from its completed parts; the
// object only materialises once every part has been staged.
func BuildMpDone(s path.S3, uploadID string, parts []CompletedPart) (*op.Op, error) {
	var body []byte
	body = append(body, `<CompleteMultipartUpload>`...)
	for _, p := range parts {
		body = append(body, `<Part><PartNumber>`...)
		body = append(body, strconv.Itoa(p.PartNumber)...)
		body = append(body, `</PartNumber><ETag>`...)
		body = append(body, p.ETag...)
		body = append(body, `</ETag></Part>`...)
	}
	body = append(body, `</CompleteMultipartUpload>`...)

	o := newOp(OpMpDone, op.MethodPOST, objectURL(s))
	o.AddQuery("uploadId", uploadID)
	o.ReqHeaders.Set("Content-Type", "application/xml")
	o.ReqBody = op.IOV(body, 0)
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildMpAbort aborts an in-progress multipart upload, releasing any
// already-uploaded parts.
func BuildMpAbort(s path.S3, uploadID string) (*op.Op, error) {
	o := newOp(OpMpAbort, op.MethodDELETE, objectURL(s))
	o.AddQuery("uploadId", uploadID)
	o.Processor = statusOnlyProcessor{}
	return o, nil
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

type svcListProcessor struct{ out *SvcListResult }

func (p svcListProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{
		Path: "/ListAllMyBucketsResult/Buckets/Bucket",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			p.out.Buckets = append(p.out.Buckets, BucketEntry{})
			idx := len(p.out.Buckets) - 1
			r.Register(&xmlfinder.Finder{Path: "./Name", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Buckets[idx].Name = v
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./CreationDate", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Buckets[idx].CreationDate = v
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}

type bktListProcessor struct{ out *BktListResult }

func (p bktListProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/ListBucketResult/IsTruncated", Kind: xmlfinder.ConsumeBool, BoolOut: &p.out.IsTruncated})
	reg.Register(&xmlfinder.Finder{Path: "/ListBucketResult/NextMarker", Kind: xmlfinder.ConsumeString, StringOut: &p.out.NextMarker})
	reg.Register(&xmlfinder.Finder{
		Path: "/ListBucketResult/Contents",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			p.out.Objects = append(p.out.Objects, ObjectEntry{})
			idx := len(p.out.Objects) - 1
			r.Register(&xmlfinder.Finder{Path: "./Key", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Objects[idx].Key = v
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./Size", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				n, _ := strconv.ParseInt(v, 10, 64)
				p.out.Objects[idx].Size = n
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./ETag", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Objects[idx].ETag = v
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./LastModified", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Objects[idx].LastModified = v
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}

type locationProcessor struct{ out *string }

func (p locationProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/LocationConstraint", Kind: xmlfinder.ConsumeString, StringOut: p.out})
	return reg.Walk(body)
}

type mpStartProcessor struct{ out *string }

func (p mpStartProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/InitiateMultipartUploadResult/UploadId", Kind: xmlfinder.ConsumeString, StringOut: p.out})
	return reg.Walk(body)
}
