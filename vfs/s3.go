package vfs

import (
	"context"
	"strconv"
	"time"

	"github.com/elasto/elasto/internal/backend/s3"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/multipart"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
	"github.com/elasto/elasto/internal/sign"
)

// s3MultipartThreshold mirrors the Azure block-blob single-shot threshold
// of internal/multipart, applied here to S3's own multipart API (start/
// part/done) rather than the Azure-specific uploader.
const s3MultipartThreshold = multipart.SingleShotThresholdHTTPS

// s3PartSize is the fixed part size used once an object write crosses
// s3MultipartThreshold.
const s3PartSize = multipart.PerPartCeiling

func (h *FileHandle) readS3(ctx context.Context, buf []byte, off int64) (int, error) {
	o, err := s3.BuildObjGet(h.s3Path, op.IOV(buf, 0), off, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return respContentLength(o, len(buf)), nil
}

func (h *FileHandle) writeS3(ctx context.Context, buf []byte, off int64) (int, error) {
	if off != 0 {
		return 0, errz.New(errz.KindNotSupported, "S3 object write requires off=0 (whole-object replace), got off=%d", off)
	}
	size := int64(len(buf))
	if size <= s3MultipartThreshold {
		o, err := s3.BuildObjPut(h.s3Path, op.IOV(buf, 0), "")
		if err != nil {
			return 0, err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return 0, err
		}
		return len(buf), nil
	}
	if err := h.writeS3Multipart(ctx, buf, size); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (h *FileHandle) writeS3Multipart(ctx context.Context, buf []byte, size int64) error {
	var uploadID string
	startOp, err := s3.BuildMpStart(h.s3Path, &uploadID)
	if err != nil {
		return err
	}
	if err := h.dispatch(ctx, startOp); err != nil {
		return err
	}

	var parts []s3.CompletedPart
	var off int64
	for partNum := 1; off < size; partNum++ {
		length := int64(s3PartSize)
		if rem := size - off; rem < length {
			length = rem
		}
		partOp, err := s3.BuildPartPut(h.s3Path, uploadID, partNum, op.IOV(buf[off:off+length], 0))
		if err != nil {
			_ = h.dispatch(ctx, mustAbort(h.s3Path, uploadID))
			return err
		}
		if err := h.dispatch(ctx, partOp); err != nil {
			_ = h.dispatch(ctx, mustAbort(h.s3Path, uploadID))
			return err
		}
		etag, _ := partOp.RespHeaders.Get("ETag")
		parts = append(parts, s3.CompletedPart{PartNumber: partNum, ETag: etag})
		off += length
	}

	doneOp, err := s3.BuildMpDone(h.s3Path, uploadID, parts)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, doneOp)
}

func mustAbort(p path.S3, uploadID string) *op.Op {
	o, err := s3.BuildMpAbort(p, uploadID)
	if err != nil {
		return &op.Op{}
	}
	return o
}

func (h *FileHandle) statS3(ctx context.Context) (Stat, error) {
	if h.flags.has(FlagDirectory) {
		var loc string
		o, err := s3.BuildBktLocationGet(h.s3Path, &loc)
		if err != nil {
			return Stat{}, err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return Stat{}, err
		}
		return Stat{Valid: StatType, EntType: EntDir}, nil
	}
	o, err := s3.BuildObjHead(h.s3Path)
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
	return st, nil
}

func (h *FileHandle) mkdirS3(ctx context.Context) error {
	o, err := s3.BuildBktCreate(h.s3Path, "")
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) rmdirS3(ctx context.Context) error {
	o, err := s3.BuildBktDelete(h.s3Path)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) removeS3(ctx context.Context) error {
	o, err := s3.BuildObjDelete(h.s3Path)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

func (h *FileHandle) readdirS3(ctx context.Context, cb ReaddirFunc) error {
	marker := ""
	for {
		var out s3.BktListResult
		o, err := s3.BuildBktList(h.s3Path, "", marker, &out)
		if err != nil {
			return err
		}
		if err := h.dispatch(ctx, o); err != nil {
			return err
		}
		for _, obj := range out.Objects {
			entry := DirEntry{
				Name: obj.Key,
				Stat: Stat{Valid: StatType | StatSize, EntType: EntFile, Size: obj.Size},
			}
			if err := cb(entry); err != nil {
				return err
			}
		}
		if !out.IsTruncated || out.NextMarker == "" {
			return nil
		}
		marker = out.NextMarker
	}
}

const s3CopyPollInterval = 500 * time.Millisecond
const s3CopyPollTimeout = 30 * time.Second

func (h *FileHandle) spliceS3(ctx context.Context, dstPath string) error {
	dst, err := path.ParseS3(dstPath)
	if err != nil {
		return err
	}
	// The copy targets dst, not the handle's own bucket/object, so the S3
	// V2 canonical resource (which the signer carries explicitly rather
	// than deriving from the Op's URL) must be rebuilt for dst.
	var dstSigner op.Signer
	if sv, ok := h.signer.(*sign.S3V2); ok {
		dstSigner = &sign.S3V2{AccessKeyID: sv.AccessKeyID, SecretKey: sv.SecretKey, Bucket: dst.Bucket, Object: dst.Object}
	}

	o, err := s3.BuildObjCopy(dst, h.s3Path)
	if err != nil {
		return err
	}
	o.Signer = dstSigner
	if err := h.dispatch(ctx, o); err != nil {
		return err
	}

	deadline := time.Now().Add(s3CopyPollTimeout)
	for {
		ho, err := s3.BuildObjHead(dst)
		if err != nil {
			return err
		}
		ho.Signer = dstSigner
		if err := h.dispatch(ctx, ho); err == nil {
			return nil
		} else if !errz.IsNotFound(err) {
			return err
		}
		if time.Now().After(deadline) {
			return errz.New(errz.KindTimeout, "object copy did not complete within %s", s3CopyPollTimeout)
		}
		select {
		case <-ctx.Done():
			return errz.Wrap(errz.KindTimeout, ctx.Err(), "object copy poll cancelled")
		case <-time.After(s3CopyPollInterval):
		}
	}
}
