package vfs

import (
	"context"
	"strconv"
	"time"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/multipart"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/pagerange"
	"github.com/elasto/elasto/internal/path"
)

func (h *FileHandle) readAzureBlob(ctx context.Context, buf []byte, off int64) (int, error) {
	o, err := azureblob.BuildGetBlob(h.blobPath, op.IOV(buf, 0), off, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return respContentLength(o, len(buf)), nil
}

func (h *FileHandle) writeAzureBlob(ctx context.Context, buf []byte, off int64) (int, error) {
	if h.blobKind == azureblob.KindPageBlob {
		return h.writePageBlob(ctx, buf, off)
	}
	return h.writeBlockBlob(ctx, buf, off)
}

func (h *FileHandle) writePageBlob(ctx context.Context, buf []byte, off int64) (int, error) {
	length := int64(len(buf))
	if err := pagerange.CheckAligned(off, length); err != nil {
		return 0, err
	}
	o, err := azureblob.BuildPutPage(h.blobPath, off, length, op.IOV(buf, 0))
	if err != nil {
		return 0, err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (h *FileHandle) writeBlockBlob(ctx context.Context, buf []byte, off int64) (int, error) {
	if off != 0 {
		return 0, errz.New(errz.KindNotSupported, "block blob write requires off=0 (whole-blob replace), got off=%d", off)
	}
	size := int64(len(buf))
	threshold := int64(multipart.SingleShotThresholdHTTPS)
	if h.conn.InsecureHTTP {
		threshold = multipart.SingleShotThresholdHTTP
	}
	if size <= threshold {
		o, err := azureblob.BuildPutBlob(h.blobPath, azureblob.KindBlockBlob, op.IOV(buf, 0), "")
		if err != nil {
			return 0, err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return 0, err
		}
		return len(buf), nil
	}
	u := &multipart.Uploader{Signer: h.signer}
	if err := u.Put(ctx, h.conn, h.blobPath, op.IOV(buf, 0), size); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (h *FileHandle) truncateAzureBlob(ctx context.Context, size int64) error {
	// x-ms-blob-content-length resizes page blobs only; a block blob
	// changes size by rewriting its block list.
	if h.blobKind != azureblob.KindPageBlob {
		return errz.New(errz.KindNotSupported, "truncate is only supported on Azure page blobs")
	}
	if err := pagerange.CheckAligned(0, size); err != nil {
		return err
	}
	o, err := azureblob.BuildSetBlobProps(h.blobPath, size)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

// Allocate clears a 512-byte aligned page range on a page blob when
// punchHole is set; a call without punchHole returns invalid-argument
// (data is written through Write).
func (h *FileHandle) Allocate(ctx context.Context, off, length int64, punchHole bool) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if h.backend != BackendAzurePageBlob {
		return errz.New(errz.KindNotSupported, "allocate is only supported on Azure page blobs")
	}
	if err := pagerange.CheckAligned(off, length); err != nil {
		return err
	}
	if !punchHole {
		return errz.New(errz.KindInvalidArgument, "allocate without punchHole has no zero-fill source; use Write")
	}
	o, err := azureblob.BuildClearPage(h.blobPath, off, length)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

// ListRanges enumerates the allocated page ranges of a page blob in
// [off, off+length), invoking cb for each.
func (h *FileHandle) ListRanges(ctx context.Context, off, length int64, cb RangeFunc) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if h.backend != BackendAzurePageBlob {
		return errz.New(errz.KindNotSupported, "list ranges is only supported on Azure page blobs")
	}
	fetch := func(ctx context.Context, windowOff, windowLen int64) ([]pagerange.Range, error) {
		var out []azureblob.PageRange
		o, err := azureblob.BuildListPageRanges(h.blobPath, off+windowOff, windowLen, &out)
		if err != nil {
			return nil, err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return nil, err
		}
		ranges := make([]pagerange.Range, len(out))
		for i, r := range out {
			ranges[i] = pagerange.Range{Start: r.Start, End: r.End}
		}
		return ranges, nil
	}
	return pagerange.ListRanges(ctx, fetch, length, func(start, rlen int64) error {
		return cb(start, rlen)
	})
}

// BlockInfo describes one staged or committed block of a block blob.
type BlockInfo struct {
	ID        string
	Committed bool
	Length    int64
}

// ListBlocks enumerates the committed and uncommitted blocks of a block
// blob, in server-reported order.
func (h *FileHandle) ListBlocks(ctx context.Context) ([]BlockInfo, error) {
	if err := h.requireOpen(); err != nil {
		return nil, err
	}
	if h.backend != BackendAzureBlockBlob {
		return nil, errz.New(errz.KindNotSupported, "block lists only exist on Azure block blobs")
	}
	var out azureblob.GetBlockListResult
	o, err := azureblob.BuildGetBlockList(h.blobPath, &out)
	if err != nil {
		return nil, err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return nil, err
	}
	blocks := make([]BlockInfo, len(out.Blocks))
	for i, b := range out.Blocks {
		blocks[i] = BlockInfo{ID: b.ID, Committed: b.State == azureblob.BlockCommitted, Length: b.Length}
	}
	return blocks, nil
}

func (h *FileHandle) statAzureBlob(ctx context.Context) (Stat, error) {
	if h.flags.has(FlagDirectory) {
		o, err := azureblob.BuildGetCtnrProps(h.blobPath)
		if err != nil {
			return Stat{}, err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return Stat{}, err
		}
		return Stat{Valid: StatType, EntType: EntDir}, nil
	}
	o, err := azureblob.BuildHeadBlob(h.blobPath)
	if err != nil {
		return Stat{}, err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return Stat{}, err
	}
	st := Stat{Valid: StatType | StatSize | StatContentType, EntType: EntFile}
	if v, ok := o.RespHeaders.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.Size = n
		}
	}
	if v, ok := o.RespHeaders.Get("Content-Type"); ok {
		st.ContentType = v
	}
	if v, ok := o.RespHeaders.Get("x-ms-lease-state"); ok {
		st.Valid |= StatLease
		st.Lease = leaseStateFromHeader(v)
	}
	if h.blobKind == azureblob.KindPageBlob {
		st.Valid |= StatBSize
		st.BlkSize = pagerange.SectorSize
	}
	return st, nil
}

func (h *FileHandle) mkdirAzureBlob(ctx context.Context) error {
	o, err := azureblob.BuildCreateCtnr(h.blobPath)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) rmdirAzureBlob(ctx context.Context) error {
	o, err := azureblob.BuildDeleteCtnr(h.blobPath)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) removeAzureBlob(ctx context.Context) error {
	o, err := azureblob.BuildDeleteBlob(h.blobPath)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) readdirAzureBlob(ctx context.Context, cb ReaddirFunc) error {
	if h.blobPath.Kind == path.BlobAccount || h.blobPath.Kind == path.BlobRoot {
		marker := ""
		for {
			var out azureblob.ListCtnrsResult
			o, err := azureblob.BuildListCtnrs(h.blobPath, marker, &out)
			if err != nil {
				return err
			}
			if err := h.dispatch(ctx, o); err != nil {
				return err
			}
			for _, c := range out.Containers {
				if err := cb(DirEntry{Name: c.Name, Stat: Stat{Valid: StatType, EntType: EntDir}}); err != nil {
					return err
				}
			}
			if out.NextMarker == "" {
				return nil
			}
			marker = out.NextMarker
		}
	}

	marker := ""
	for {
		var out azureblob.ListBlobsResult
		o, err := azureblob.BuildListBlobs(h.blobPath, marker, &out)
		if err != nil {
			return err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return err
		}
		for _, b := range out.Blobs {
			entry := DirEntry{
				Name: b.Name,
				Stat: Stat{Valid: StatType | StatSize, EntType: EntFile, Size: b.ContentLength},
			}
			if err := cb(entry); err != nil {
				return err
			}
		}
		if out.NextMarker == "" {
			return nil
		}
		marker = out.NextMarker
	}
}

// copyPollInterval/copyPollTimeout bound spliceAzureBlob's wait for an
// async server-side copy to finish.
const (
	copyPollInterval = 500 * time.Millisecond
	copyPollTimeout  = 30 * time.Second
)

func (h *FileHandle) spliceAzureBlob(ctx context.Context, dstPath string) error {
	dst, err := path.ParseBlob(dstPath)
	if err != nil {
		return err
	}
	scheme := "https"
	if h.conn.InsecureHTTP {
		scheme = "http"
	}
	srcAccountURL := scheme + "://" + h.conn.Hostname
	o, err := azureblob.BuildCopyBlob(dst, h.blobPath, srcAccountURL)
	if err != nil {
		return err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return err
	}
	copyStatus, _ := o.RespHeaders.Get("x-ms-copy-status")
	if copyStatus == "" || copyStatus == "success" {
		return nil
	}

	deadline := time.Now().Add(copyPollTimeout)
	for {
		ho, err := azureblob.BuildHeadBlob(dst)
		if err != nil {
			return err
		}
		if err := h.dispatch(ctx, ho); err != nil {
			return err
		}
		status, _ := ho.RespHeaders.Get("x-ms-copy-status")
		switch status {
		case "success", "":
			return nil
		case "failed", "aborted":
			return errz.New(errz.KindIO, "blob copy ended with status %q", status)
		}
		if time.Now().After(deadline) {
			return errz.New(errz.KindTimeout, "blob copy did not complete within %s", copyPollTimeout)
		}
		select {
		case <-ctx.Done():
			return errz.Wrap(errz.KindTimeout, ctx.Err(), "blob copy poll cancelled")
		case <-time.After(copyPollInterval):
		}
	}
}
