// Package multipart implements the block-blob multipart uploader:
// writes too large for a single PUT are staged as uncommitted blocks and
// committed with one put_block_list call.
package multipart

import (
	"context"
	"fmt"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/conn"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/metrics"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

// Service limits on part size and uncommitted state.
const (
	// PerPartCeiling is the hard per-part byte ceiling (4 MiB).
	PerPartCeiling = 4 * 1024 * 1024
	// MaxUncommittedParts bounds uncommitted blocks per blob (100,000).
	MaxUncommittedParts = 100_000
	// MaxUncommittedBytes bounds total uncommitted bytes per blob (400 GiB).
	MaxUncommittedBytes = 400 * 1024 * 1024 * 1024
	// SingleShotThresholdHTTPS is the per-connection payload threshold
	// over HTTPS above which Put must use multipart (2 MiB).
	SingleShotThresholdHTTPS = 2 * 1024 * 1024
	// SingleShotThresholdHTTP is the same threshold over plain HTTP.
	SingleShotThresholdHTTP = 2 * 1024 * 1024
)

// Uploader drives a multipart block-blob write.
type Uploader struct {
	PartSize int64     // defaults to PerPartCeiling when zero
	Signer   op.Signer // signs every put_block/put_block_list Op
}

// partStream returns a DataStream presenting exactly [start, start+length)
// of src as an independent zero-based stream, so each staged part's
// producer callback sees its own small monotonic stream_off independent
// of the blob-wide offset.
func (u *Uploader) partStream(src op.DataStream, start, length int64) op.DataStream {
	switch src.Kind {
	case op.StreamIOV:
		lo := src.Off + start
		hi := lo + length
		return op.IOV(src.Buf[lo:hi], 0)
	case op.StreamFile:
		return op.FileStream(src.File, src.FileOff+start, length)
	default:
		out := func(partOff int64, need int) ([]byte, int, error) {
			return src.Out(start+partOff, need)
		}
		return op.CB(length, out, nil)
	}
}

// Put uploads src (size bytes) to dst as a sequence of put_block calls
// followed by one put_block_list commit.
func (u *Uploader) Put(ctx context.Context, c *conn.Connection, dst path.Blob, src op.DataStream, size int64) error {
	partSize := u.PartSize
	if partSize <= 0 {
		partSize = PerPartCeiling
	}
	if partSize > PerPartCeiling {
		return errz.New(errz.KindInvalidArgument, "part size %d exceeds the %d-byte per-part ceiling", partSize, PerPartCeiling)
	}

	numParts := (size + partSize - 1) / partSize
	if numParts > MaxUncommittedParts {
		return errz.New(errz.KindDataTooLarge, "upload requires %d parts, exceeding the %d uncommitted-part cap", numParts, MaxUncommittedParts)
	}
	if size > MaxUncommittedBytes {
		return errz.New(errz.KindDataTooLarge, "upload size %d exceeds the %d-byte uncommitted cap", size, MaxUncommittedBytes)
	}

	blockIDs := make([]string, 0, numParts)
	var off int64
	for partIdx := 0; off < size; partIdx++ {
		length := partSize
		if size-off < length {
			length = size - off
		}
		blockID := fmt.Sprintf("block%06d", partIdx)
		partBody := u.partStream(src, off, length)

		o, err := azureblob.BuildPutBlock(dst, blockID, partBody)
		if err != nil {
			return err
		}
		o.Signer = u.Signer
		if err := c.Txrx(ctx, conn.BackendAzureBlob, o); err != nil {
			metrics.MultipartPartsTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.MultipartPartsTotal.WithLabelValues("success").Inc()
		blockIDs = append(blockIDs, blockID)
		off += length
	}

	o, err := azureblob.BuildPutBlockList(dst, blockIDs)
	if err != nil {
		return err
	}
	o.Signer = u.Signer
	if err := c.Txrx(ctx, conn.BackendAzureBlob, o); err != nil {
		return err
	}
	return nil
}
