package vfs

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/conn"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

// handleState is a FileHandle's lifecycle state:
// {FRESH → OPEN → CLOSED}.
type handleState int

const (
	stateFresh handleState = iota
	stateOpen
	stateClosed
)

// FileHandle is an open handle to a file, directory, container/bucket,
// or share, bound to one Backend and one Connection. A FileHandle is
// not safe for concurrent use by multiple
// goroutines; callers wanting parallelism open one handle
// per goroutine.
type FileHandle struct {
	backend Backend
	state   handleState
	flags   OpenFlags

	conn   *conn.Connection
	signer op.Signer

	blobPath path.Blob
	blobKind azureblob.BlobKind
	filePath path.File
	s3Path   path.S3
	webPath  path.Web

	leaseState    LeaseState
	leaseID       string
	presetLeaseID string
}

// backendLabel maps a vfs.Backend onto the conn.BackendLabel its
// Connection was opened under, for metrics and Txrx dispatch.
func (h *FileHandle) backendLabel() conn.BackendLabel {
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return conn.BackendAzureBlob
	case BackendAzureFile:
		return conn.BackendAzureFile
	case BackendS3:
		return conn.BackendS3
	default:
		return conn.BackendWeb
	}
}

// dispatch signs o with the handle's credentials (if any) and drives it
// through the handle's Connection.
func (h *FileHandle) dispatch(ctx context.Context, o *op.Op) error {
	if h.state == stateClosed {
		return errz.New(errz.KindInvalidArgument, "operation on a closed handle")
	}
	if o.Signer == nil && h.signer != nil {
		o.Signer = h.signer
	}
	return h.conn.Txrx(ctx, h.backendLabel(), o)
}

// requireOpen rejects data operations against a handle that is not yet
// open or has already been closed.
func (h *FileHandle) requireOpen() error {
	if h.state != stateOpen {
		return errz.New(errz.KindInvalidArgument, "handle is not open (state %d)", h.state)
	}
	return nil
}

// requireNotDirectory rejects data ops (read/write/truncate) when the
// handle was opened with FlagDirectory.
func (h *FileHandle) requireNotDirectory() error {
	if h.flags.has(FlagDirectory) {
		return errz.New(errz.KindInvalidArgument, "operation forbidden on a directory handle")
	}
	return nil
}

// requireDirectory rejects directory ops against a non-directory handle.
func (h *FileHandle) requireDirectory() error {
	if !h.flags.has(FlagDirectory) {
		return errz.New(errz.KindInvalidArgument, "operation requires a directory handle")
	}
	return nil
}

// respContentLength parses the response Content-Length header, clamped to
// max, falling back to max when the header is absent or malformed (callers
// use this to report how much of a ranged read actually arrived).
func respContentLength(o *op.Op, max int) int {
	v, ok := o.RespHeaders.Get("Content-Length")
	if !ok {
		return max
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return max
	}
	if int(n) > max {
		return max
	}
	return int(n)
}

// Close releases the handle's Connection. It first
// attempts to release a held lease; a release failure (e.g. the lease was
// already broken) does not fail Close.
func (h *FileHandle) Close(ctx context.Context) error {
	if h.state == stateClosed {
		return nil
	}
	if h.leaseState == LeaseLeased {
		if err := h.LeaseRelease(ctx); err != nil {
			slog.Warn("lease release failed during close, proceeding", "error", err)
		}
	}
	h.state = stateClosed
	if h.conn != nil {
		h.conn.Free()
	}
	return nil
}
