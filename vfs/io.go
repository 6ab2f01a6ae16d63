package vfs

import (
	"context"

	"github.com/elasto/elasto/internal/errz"
)

// Read fills buf from the handle's data starting at off, returning the
// number of bytes actually read (which may be less than len(buf) at
// end-of-file).
func (h *FileHandle) Read(ctx context.Context, buf []byte, off int64) (int, error) {
	if err := h.requireOpen(); err != nil {
		return 0, err
	}
	if err := h.requireNotDirectory(); err != nil {
		return 0, err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.readAzureBlob(ctx, buf, off)
	case BackendAzureFile:
		return h.readAzureFile(ctx, buf, off)
	case BackendS3:
		return h.readS3(ctx, buf, off)
	case BackendWeb:
		return h.readWeb(ctx, buf, off)
	default:
		return 0, errz.New(errz.KindNotSupported, "read not supported on backend %v", h.backend)
	}
}

// Write stores buf at off, extending the object if off+len(buf) exceeds
// its current size.
func (h *FileHandle) Write(ctx context.Context, buf []byte, off int64) (int, error) {
	if err := h.requireOpen(); err != nil {
		return 0, err
	}
	if err := h.requireNotDirectory(); err != nil {
		return 0, err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.writeAzureBlob(ctx, buf, off)
	case BackendAzureFile:
		return h.writeAzureFile(ctx, buf, off)
	case BackendS3:
		return h.writeS3(ctx, buf, off)
	case BackendWeb:
		return 0, errz.New(errz.KindNotSupported, "the web backend is read-only")
	default:
		return 0, errz.New(errz.KindNotSupported, "write not supported on backend %v", h.backend)
	}
}

// Truncate resizes the handle's data to size. Only Azure Page Blob
// (size must be 512-byte aligned) and Azure File support resizing in
// place; a block blob or S3 object changes size only by rewriting its
// content.
func (h *FileHandle) Truncate(ctx context.Context, size int64) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireNotDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.truncateAzureBlob(ctx, size)
	case BackendAzureFile:
		return h.truncateAzureFile(ctx, size)
	case BackendS3:
		return errz.New(errz.KindNotSupported, "S3 objects cannot be truncated in place")
	case BackendWeb:
		return errz.New(errz.KindNotSupported, "the web backend is read-only")
	default:
		return errz.New(errz.KindNotSupported, "truncate not supported on backend %v", h.backend)
	}
}

// Stat fetches metadata for the handle's target.
func (h *FileHandle) Stat(ctx context.Context) (Stat, error) {
	if err := h.requireOpen(); err != nil {
		return Stat{}, err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.statAzureBlob(ctx)
	case BackendAzureFile:
		return h.statAzureFile(ctx)
	case BackendS3:
		return h.statS3(ctx)
	case BackendWeb:
		return h.statWeb(ctx)
	default:
		return Stat{}, errz.New(errz.KindNotSupported, "stat not supported on backend %v", h.backend)
	}
}

// Statfs fetches filesystem-level metadata.
func (h *FileHandle) Statfs(ctx context.Context) (Statfs, error) {
	if err := h.requireOpen(); err != nil {
		return Statfs{}, err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob, BackendAzureFile:
		return Statfs{
			MinIOSize: 1,
			OptIOSize: 4 * 1024 * 1024,
			Availability: []RegionAvailability{
				{Region: "azure", Location: DefaultAzureLocation},
			},
		}, nil
	case BackendS3:
		return Statfs{MinIOSize: 1, OptIOSize: 8 * 1024 * 1024}, nil
	case BackendWeb:
		return Statfs{MinIOSize: 1, OptIOSize: 64 * 1024}, nil
	default:
		return Statfs{}, errz.New(errz.KindNotSupported, "statfs not supported on backend %v", h.backend)
	}
}

// Mkdir creates the handle's target as a directory/container/bucket/share.
// The handle must have been opened
// with FlagDirectory; Open already creates the target when FlagCreate is
// set, so Mkdir is only needed when a handle was opened without it.
func (h *FileHandle) Mkdir(ctx context.Context) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.mkdirAzureBlob(ctx)
	case BackendAzureFile:
		return h.mkdirAzureFile(ctx)
	case BackendS3:
		return h.mkdirS3(ctx)
	default:
		return errz.New(errz.KindNotSupported, "mkdir not supported on backend %v", h.backend)
	}
}

// Rmdir removes the handle's target directory/container/bucket/share.
// Every backend rejects a non-empty target with KindConflict.
func (h *FileHandle) Rmdir(ctx context.Context) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.rmdirAzureBlob(ctx)
	case BackendAzureFile:
		return h.rmdirAzureFile(ctx)
	case BackendS3:
		return h.rmdirS3(ctx)
	default:
		return errz.New(errz.KindNotSupported, "rmdir not supported on backend %v", h.backend)
	}
}

// Readdir enumerates the handle's directory/container/bucket/share,
// invoking cb once per entry until cb returns an error or enumeration
// completes.
func (h *FileHandle) Readdir(ctx context.Context, cb ReaddirFunc) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.readdirAzureBlob(ctx, cb)
	case BackendAzureFile:
		return h.readdirAzureFile(ctx, cb)
	case BackendS3:
		return h.readdirS3(ctx, cb)
	default:
		return errz.New(errz.KindNotSupported, "readdir not supported on backend %v", h.backend)
	}
}

// Remove deletes the handle's non-directory target.
func (h *FileHandle) Remove(ctx context.Context) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireNotDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.removeAzureBlob(ctx)
	case BackendAzureFile:
		return h.removeAzureFile(ctx)
	case BackendS3:
		return h.removeS3(ctx)
	default:
		return errz.New(errz.KindNotSupported, "remove not supported on backend %v", h.backend)
	}
}

// Splice copies the handle's data to dstPath within the same backend and
// account/bucket as a server-side copy, possibly asynchronous; the
// backend implementation polls to completion before returning.
func (h *FileHandle) Splice(ctx context.Context, dstPath string) error {
	if err := h.requireOpen(); err != nil {
		return err
	}
	if err := h.requireNotDirectory(); err != nil {
		return err
	}
	switch h.backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return h.spliceAzureBlob(ctx, dstPath)
	case BackendS3:
		return h.spliceS3(ctx, dstPath)
	default:
		return errz.New(errz.KindNotSupported, "splice not supported on backend %v", h.backend)
	}
}
