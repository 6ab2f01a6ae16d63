// Package azureblob builds Ops for the Azure Block Blob and Page Blob
// backends (ABB/APB share one container/blob namespace and REST surface;
// only the put/write verbs differ).
package azureblob

import (
	"encoding/base64"
	"io"
	"strconv"

	"github.com/aws/smithy-go/encoding/httpbinding"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
	"github.com/elasto/elasto/internal/uid"
	"github.com/elasto/elasto/internal/xmlfinder"
)

// xMSVersion is the fixed Azure REST API version every Op carries,
// identical across every Azure op elasto issues.
const xMSVersion = "2023-11-03"

// Opcode identifies an azureblob verb, for metrics labelling and vtable
// dispatch.
type Opcode string

const (
	OpListCtnrs      Opcode = "list_ctnrs"
	OpCreateCtnr     Opcode = "create_ctnr"
	OpDeleteCtnr     Opcode = "delete_ctnr"
	OpGetCtnrProps   Opcode = "get_ctnr_props"
	OpListBlobs      Opcode = "list_blobs"
	OpPutBlob        Opcode = "put_blob"
	OpGetBlob        Opcode = "get_blob"
	OpHeadBlob       Opcode = "head_blob"
	OpSetBlobProps   Opcode = "set_blob_props"
	OpPutPage        Opcode = "put_page"
	OpClearPage      Opcode = "clear_page"
	OpListPageRanges Opcode = "list_page_ranges"
	OpCopyBlob       Opcode = "copy_blob"
	OpPutBlock       Opcode = "put_block"
	OpPutBlockList   Opcode = "put_block_list"
	OpGetBlockList   Opcode = "get_block_list"
	OpDeleteBlob     Opcode = "delete_blob"
	OpLeaseBlob      Opcode = "lease_blob"
	OpLeaseCtnr      Opcode = "lease_ctnr"
)

// BlobKind selects the put_blob variant: a block blob (staged via
// put_block/put_block_list for large writes) or a page blob (fixed-size,
// 512-byte aligned, written via put_page/clear_page).
type BlobKind int

const (
	KindBlockBlob BlobKind = iota
	KindPageBlob
)

// LeaseAction selects which lease verb to issue against a blob or
// container.
type LeaseAction string

const (
	LeaseAcquire LeaseAction = "acquire"
	LeaseRelease LeaseAction = "release"
	LeaseBreak   LeaseAction = "break"
	LeaseRenew   LeaseAction = "renew"
)

// BlobEntry is one <Blob> returned by list_blobs.
type BlobEntry struct {
	Name          string
	ContentLength int64
	ETag          string
	LastModified  string
}

// ListBlobsResult is the decoded response body of list_blobs.
type ListBlobsResult struct {
	Blobs      []BlobEntry
	NextMarker string
}

func escapeSeg(s string) string {
	return httpbinding.EscapePath(s, false)
}

func blobURL(b path.Blob) string {
	switch b.Kind {
	case path.BlobContainer:
		return "/" + escapeSeg(b.Container)
	case path.BlobBlob:
		return "/" + escapeSeg(b.Container) + "/" + escapeSeg(b.BlobName)
	default:
		return "/"
	}
}

func newOp(opcode Opcode, method op.Method, url string) *op.Op {
	o := &op.Op{
		Opcode:       string(opcode),
		Method:       method,
		URLPath:      url,
		RequireHTTPS: false,
	}
	o.ReqHeaders.Set("x-ms-version", xMSVersion)
	return o
}

// BuildPutBlob constructs a put_blob Op. For a block blob this is a
// single-shot PUT (the multipart uploader handles writes too large for
// one request); for a page blob it declares the fixed content length
// and page-blob type with no body (pages are written afterward via
// put_page).
func BuildPutBlob(b path.Blob, kind BlobKind, body op.DataStream, contentType string) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "put_blob requires a blob path, got %v", b.Kind)
	}
	o := newOp(OpPutBlob, op.MethodPUT, blobURL(b))
	switch kind {
	case KindBlockBlob:
		o.ReqHeaders.Set("x-ms-blob-type", "BlockBlob")
		o.ReqBody = body
		if contentType != "" {
			o.ReqHeaders.Set("Content-Type", contentType)
		}
	case KindPageBlob:
		o.ReqHeaders.Set("x-ms-blob-type", "PageBlob")
		o.ReqHeaders.Set("x-ms-blob-content-length", strconv.FormatInt(body.Size(), 10))
	}
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildGetBlob constructs a get_blob Op, optionally ranged.
func BuildGetBlob(b path.Blob, dst op.DataStream, rangeOff, rangeLen int64) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "get_blob requires a blob path")
	}
	o := newOp(OpGetBlob, op.MethodGET, blobURL(b))
	if rangeLen > 0 {
		o.ReqHeaders.Set("Range", httpRange(rangeOff, rangeLen))
	}
	o.RespBody = dst
	o.Processor = bodyProcessor{dst: dst}
	return o, nil
}

// BuildHeadBlob constructs a head_blob (get_blob_properties) Op.
func BuildHeadBlob(b path.Blob) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "head_blob requires a blob path")
	}
	o := newOp(OpHeadBlob, op.MethodHEAD, blobURL(b))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildDeleteBlob constructs a delete_blob Op.
func BuildDeleteBlob(b path.Blob) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "delete_blob requires a blob path")
	}
	o := newOp(OpDeleteBlob, op.MethodDELETE, blobURL(b))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildSetBlobProps constructs a set_blob_props Op (used by truncate on a
// page blob via x-ms-blob-content-length).
func BuildSetBlobProps(b path.Blob, contentLength int64) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "set_blob_props requires a blob path")
	}
	o := newOp(OpSetBlobProps, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "properties")
	o.ReqHeaders.Set("x-ms-blob-content-length", strconv.FormatInt(contentLength, 10))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildPutPage writes a page range [off, off+len) on a page blob. off and
// len must be 512-byte aligned.
func BuildPutPage(b path.Blob, off, length int64, body op.DataStream) (*op.Op, error) {
	if off%512 != 0 || length%512 != 0 {
		return nil, errz.New(errz.KindInvalidArgument, "page put requires 512-byte aligned offset and length, got off=%d len=%d", off, length)
	}
	o := newOp(OpPutPage, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "page")
	o.ReqHeaders.Set("x-ms-page-write", "update")
	o.ReqHeaders.Set("x-ms-range", httpRange(off, length))
	o.ReqBody = body
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildClearPage clears a page range, sending no body.
func BuildClearPage(b path.Blob, off, length int64) (*op.Op, error) {
	if off%512 != 0 || length%512 != 0 {
		return nil, errz.New(errz.KindInvalidArgument, "page clear requires 512-byte aligned offset and length, got off=%d len=%d", off, length)
	}
	o := newOp(OpClearPage, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "page")
	o.ReqHeaders.Set("x-ms-page-write", "clear")
	o.ReqHeaders.Set("x-ms-range", httpRange(off, length))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// PageRange is one allocated range returned by list_page_ranges.
type PageRange struct {
	Start int64
	End   int64
}

// BuildListPageRanges lists allocated page ranges in [off, off+length).
func BuildListPageRanges(b path.Blob, off, length int64, ranges *[]PageRange) (*op.Op, error) {
	o := newOp(OpListPageRanges, op.MethodGET, blobURL(b))
	o.AddQuery("comp", "pagelist")
	if length > 0 {
		o.ReqHeaders.Set("x-ms-range", httpRange(off, length))
	}
	o.Processor = pageRangesProcessor{out: ranges}
	return o, nil
}

// BuildPutBlock stages one uncommitted block for a block blob. blockID
// is the raw id; it goes on the wire base64-encoded, as the service
// requires.
func BuildPutBlock(b path.Blob, blockID string, body op.DataStream) (*op.Op, error) {
	if len(blockID) > maxBlockIDLen {
		return nil, errz.New(errz.KindInvalidArgument, "block id %q is %d bytes, exceeding the %d-byte limit", blockID, len(blockID), maxBlockIDLen)
	}
	o := newOp(OpPutBlock, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "block")
	o.AddQuery("blockid", base64.StdEncoding.EncodeToString([]byte(blockID)))
	o.ReqBody = body
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// maxBlockIDLen is the service limit on a raw (pre-base64) block id's
// length.
const maxBlockIDLen = 64

// validateBlockIDs enforces the block-commit constraints the service
// itself would reject: no raw id may exceed maxBlockIDLen bytes, and all
// ids in one commit must have equal length (the base64 encoding applied
// on the wire preserves length equality).
func validateBlockIDs(blockIDs []string) error {
	wantLen := -1
	for _, id := range blockIDs {
		if len(id) > maxBlockIDLen {
			return errz.New(errz.KindInvalidArgument, "block id %q is %d bytes, exceeding the %d-byte limit", id, len(id), maxBlockIDLen)
		}
		if wantLen == -1 {
			wantLen = len(id)
		} else if len(id) != wantLen {
			return errz.New(errz.KindInvalidArgument, "block id %q is %d bytes, other ids in this commit are %d", id, len(id), wantLen)
		}
	}
	return nil
}

// BuildPutBlockList commits a block blob from a list of previously staged
// raw block ids, all marked Latest. Ids are base64-encoded into the body
// the same way BuildPutBlock encodes them onto the query string.
func BuildPutBlockList(b path.Blob, blockIDs []string) (*op.Op, error) {
	if err := validateBlockIDs(blockIDs); err != nil {
		return nil, err
	}
	var xmlBody []byte
	xmlBody = append(xmlBody, `<?xml version="1.0" encoding="utf-8"?><BlockList>`...)
	for _, id := range blockIDs {
		xmlBody = append(xmlBody, "<Latest>"...)
		xmlBody = append(xmlBody, base64.StdEncoding.EncodeToString([]byte(id))...)
		xmlBody = append(xmlBody, "</Latest>"...)
	}
	xmlBody = append(xmlBody, "</BlockList>"...)

	o := newOp(OpPutBlockList, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "blocklist")
	o.ReqHeaders.Set("Content-Type", "application/xml")
	o.ReqBody = op.IOV(xmlBody, 0)
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BlockState tracks where a block sits in the stage/commit cycle.
type BlockState int

const (
	BlockUnsent BlockState = iota
	BlockUncommitted
	BlockCommitted
	BlockLatest
)

// Block is one staged or committed block of a block blob.
type Block struct {
	ID     string
	State  BlockState
	Length int64
}

// GetBlockListResult is the decoded response body of get_block_list.
type GetBlockListResult struct {
	Blocks []Block
}

// BuildGetBlockList fetches the committed and uncommitted block lists of
// a block blob.
func BuildGetBlockList(b path.Blob, out *GetBlockListResult) (*op.Op, error) {
	if b.Kind != path.BlobBlob {
		return nil, errz.New(errz.KindInvalidArgument, "get_block_list requires a blob path")
	}
	o := newOp(OpGetBlockList, op.MethodGET, blobURL(b))
	o.AddQuery("comp", "blocklist")
	o.AddQuery("blocklisttype", "all")
	o.Processor = blockListProcessor{out: out}
	return o, nil
}

// BuildListBlobs lists blobs in a container, optionally continuing from a
// previous NextMarker.
func BuildListBlobs(b path.Blob, marker string, out *ListBlobsResult) (*op.Op, error) {
	if b.Kind != path.BlobContainer {
		return nil, errz.New(errz.KindInvalidArgument, "list_blobs requires a container path")
	}
	o := newOp(OpListBlobs, op.MethodGET, blobURL(b))
	o.AddQuery("restype", "container")
	o.AddQuery("comp", "list")
	if marker != "" {
		o.AddQuery("marker", marker)
	}
	o.Processor = listBlobsProcessor{out: out}
	return o, nil
}

// CtnrEntry is one <Container> returned by list_ctnrs.
type CtnrEntry struct {
	Name string
}

// ListCtnrsResult is the decoded response body of list_ctnrs.
type ListCtnrsResult struct {
	Containers []CtnrEntry
	NextMarker string
}

// BuildListCtnrs lists the containers under an account, the account-level
// counterpart of BuildListBlobs for Readdir at the account root.
func BuildListCtnrs(b path.Blob, marker string, out *ListCtnrsResult) (*op.Op, error) {
	if b.Kind != path.BlobAccount && b.Kind != path.BlobRoot {
		return nil, errz.New(errz.KindInvalidArgument, "list_ctnrs requires an account path")
	}
	o := newOp(OpListCtnrs, op.MethodGET, "/")
	o.AddQuery("comp", "list")
	if marker != "" {
		o.AddQuery("marker", marker)
	}
	o.Processor = listCtnrsProcessor{out: out}
	return o, nil
}

// BuildGetCtnrProps constructs a get_ctnr_props (get_container_properties) Op.
func BuildGetCtnrProps(b path.Blob) (*op.Op, error) {
	if b.Kind != path.BlobContainer {
		return nil, errz.New(errz.KindInvalidArgument, "get_ctnr_props requires a container path")
	}
	o := newOp(OpGetCtnrProps, op.MethodGET, blobURL(b))
	o.AddQuery("restype", "container")
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildCreateCtnr creates a container.
func BuildCreateCtnr(b path.Blob) (*op.Op, error) {
	o := newOp(OpCreateCtnr, op.MethodPUT, blobURL(b))
	o.AddQuery("restype", "container")
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildDeleteCtnr deletes a container.
func BuildDeleteCtnr(b path.Blob) (*op.Op, error) {
	o := newOp(OpDeleteCtnr, op.MethodDELETE, blobURL(b))
	o.AddQuery("restype", "container")
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildCopyBlob starts a server-side copy. The copy may complete
// synchronously or run async; callers poll head_blob for completion
// (x-ms-copy-status).
func BuildCopyBlob(dst, src path.Blob, srcAccountURL string) (*op.Op, error) {
	o := newOp(OpCopyBlob, op.MethodPUT, blobURL(dst))
	o.ReqHeaders.Set("x-ms-copy-source", srcAccountURL+blobURL(src))
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildLeaseBlob issues a lease action against a blob.
func BuildLeaseBlob(b path.Blob, action LeaseAction, leaseID string, durationSec int) (*op.Op, error) {
	o := newOp(OpLeaseBlob, op.MethodPUT, blobURL(b))
	o.AddQuery("comp", "lease")
	o.ReqHeaders.Set("x-ms-lease-action", string(action))
	if leaseID != "" {
		o.ReqHeaders.Set("x-ms-lease-id", leaseID)
	}
	if action == LeaseAcquire {
		if durationSec <= 0 {
			durationSec = -1
		}
		o.ReqHeaders.Set("x-ms-lease-duration", strconv.Itoa(durationSec))
		o.ReqHeaders.Set("x-ms-proposed-lease-id", uid.New())
	}
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

// BuildLeaseCtnr issues a lease action against a container, the
// container-level counterpart of BuildLeaseBlob.
func BuildLeaseCtnr(b path.Blob, action LeaseAction, leaseID string, durationSec int) (*op.Op, error) {
	if b.Kind != path.BlobContainer {
		return nil, errz.New(errz.KindInvalidArgument, "lease_ctnr requires a container path")
	}
	o := newOp(OpLeaseCtnr, op.MethodPUT, blobURL(b))
	o.AddQuery("restype", "container")
	o.AddQuery("comp", "lease")
	o.ReqHeaders.Set("x-ms-lease-action", string(action))
	if leaseID != "" {
		o.ReqHeaders.Set("x-ms-lease-id", leaseID)
	}
	if action == LeaseAcquire {
		if durationSec <= 0 {
			durationSec = -1
		}
		o.ReqHeaders.Set("x-ms-lease-duration", strconv.Itoa(durationSec))
		o.ReqHeaders.Set("x-ms-proposed-lease-id", uid.New())
	}
	o.Processor = statusOnlyProcessor{}
	return o, nil
}

func httpRange(off, length int64) string {
	return "bytes=" + strconv.FormatInt(off, 10) + "-" + strconv.FormatInt(off+length-1, 10)
}

// statusOnlyProcessor handles verbs whose only meaningful response is the
// HTTP status (the conn pipeline already surfaces non-2xx as an error).
type statusOnlyProcessor struct{}

func (statusOnlyProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	return nil
}

// bodyProcessor copies the response body into dst's writer; used by
// get_blob where dst was already supplied by the caller.
type bodyProcessor struct{ dst op.DataStream }

func (p bodyProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	_, err := io.Copy(p.dst.Writer(), body)
	return err
}

// listBlobsProcessor decodes a list_blobs XML body via internal/xmlfinder.
type listBlobsProcessor struct{ out *ListBlobsResult }

func (p listBlobsProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/EnumerationResults/NextMarker", Kind: xmlfinder.ConsumeString, StringOut: &p.out.NextMarker})
	reg.Register(&xmlfinder.Finder{
		Path: "/EnumerationResults/Blobs/Blob",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			entry := BlobEntry{}
			p.out.Blobs = append(p.out.Blobs, entry)
			idx := len(p.out.Blobs) - 1
			r.Register(&xmlfinder.Finder{Path: "./Name", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Blobs[idx].Name = v
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./Properties/Content-Length", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				n, _ := strconv.ParseInt(v, 10, 64)
				p.out.Blobs[idx].ContentLength = n
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./Properties/Etag", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Blobs[idx].ETag = v
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./Properties/Last-Modified", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Blobs[idx].LastModified = v
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}

// listCtnrsProcessor decodes a list_ctnrs XML body.
type listCtnrsProcessor struct{ out *ListCtnrsResult }

func (p listCtnrsProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/EnumerationResults/NextMarker", Kind: xmlfinder.ConsumeString, StringOut: &p.out.NextMarker})
	reg.Register(&xmlfinder.Finder{
		Path: "/EnumerationResults/Containers/Container",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			entry := CtnrEntry{}
			p.out.Containers = append(p.out.Containers, entry)
			idx := len(p.out.Containers) - 1
			r.Register(&xmlfinder.Finder{Path: "./Name", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Containers[idx].Name = v
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}

// blockListProcessor decodes a get_block_list XML body, tagging each
// block with whether it came from the committed or uncommitted list.
type blockListProcessor struct{ out *GetBlockListResult }

func (p blockListProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	add := func(parent string, state BlockState) {
		reg.Register(&xmlfinder.Finder{
			Path: "/BlockList/" + parent + "/Block",
			Kind: xmlfinder.ConsumePathCB,
			PathCB: func(r *xmlfinder.Registry, pth string) error {
				p.out.Blocks = append(p.out.Blocks, Block{State: state})
				idx := len(p.out.Blocks) - 1
				r.Register(&xmlfinder.Finder{Path: "./Name", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
					p.out.Blocks[idx].ID = v
					return nil
				}})
				r.Register(&xmlfinder.Finder{Path: "./Size", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
					n, _ := strconv.ParseInt(v, 10, 64)
					p.out.Blocks[idx].Length = n
					return nil
				}})
				return nil
			},
		})
	}
	add("CommittedBlocks", BlockCommitted)
	add("UncommittedBlocks", BlockUncommitted)
	return reg.Walk(body)
}

// pageRangesProcessor decodes a list_page_ranges XML body.
type pageRangesProcessor struct{ out *[]PageRange }

func (p pageRangesProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{
		Path: "/PageList/PageRange",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			pr := PageRange{}
			*p.out = append(*p.out, pr)
			idx := len(*p.out) - 1
			r.Register(&xmlfinder.Finder{Path: "./Start", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				n, _ := strconv.ParseInt(v, 10, 64)
				(*p.out)[idx].Start = n
				return nil
			}})
			r.Register(&xmlfinder.Finder{Path: "./End", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				n, _ := strconv.ParseInt(v, 10, 64)
				(*p.out)[idx].End = n
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}
