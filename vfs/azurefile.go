package vfs

import (
	"context"
	"strconv"

	"github.com/elasto/elasto/internal/backend/azurefile"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
)

func (h *FileHandle) readAzureFile(ctx context.Context, buf []byte, off int64) (int, error) {
	o := azurefile.BuildFileGet(h.filePath, op.IOV(buf, 0), off, int64(len(buf)))
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return respContentLength(o, len(buf)), nil
}

func (h *FileHandle) writeAzureFile(ctx context.Context, buf []byte, off int64) (int, error) {
	o := azurefile.BuildFilePut(h.filePath, off, int64(len(buf)), op.IOV(buf, 0))
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (h *FileHandle) truncateAzureFile(ctx context.Context, size int64) error {
	o := azurefile.BuildFilePropSet(h.filePath, size)
	return h.dispatch(ctx, o)
}

func (h *FileHandle) statAzureFile(ctx context.Context) (Stat, error) {
	if h.flags.has(FlagDirectory) {
		var o *op.Op
		if h.filePath.FSEnt == "" {
			o = azurefile.BuildSharePropGet(h.filePath)
		} else {
			o = azurefile.BuildDirPropGet(h.filePath)
		}
		if err := h.dispatch(ctx, o); err != nil {
			return Stat{}, err
		}
		return Stat{Valid: StatType, EntType: EntDir}, nil
	}
	o := azurefile.BuildFilePropGet(h.filePath)
	if err := h.dispatch(ctx, o); err != nil {
		return Stat{}, err
	}
	st := Stat{Valid: StatType | StatSize, EntType: EntFile}
	if v, ok := o.RespHeaders.Get("x-ms-content-length"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.Size = n
		}
	} else if v, ok := o.RespHeaders.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.Size = n
		}
	}
	return st, nil
}

func (h *FileHandle) mkdirAzureFile(ctx context.Context) error {
	if h.filePath.FSEnt == "" {
		return h.dispatch(ctx, azurefile.BuildShareCreate(h.filePath, 0))
	}
	return h.dispatch(ctx, azurefile.BuildDirCreate(h.filePath))
}

func (h *FileHandle) rmdirAzureFile(ctx context.Context) error {
	if h.filePath.FSEnt == "" {
		return h.dispatch(ctx, azurefile.BuildShareDelete(h.filePath))
	}
	return h.dispatch(ctx, azurefile.BuildDirDelete(h.filePath))
}

func (h *FileHandle) removeAzureFile(ctx context.Context) error {
	if h.filePath.FSEnt == "" {
		return errz.New(errz.KindInvalidArgument, "remove requires a file path")
	}
	return h.dispatch(ctx, azurefile.BuildFileDelete(h.filePath))
}

func (h *FileHandle) readdirAzureFile(ctx context.Context, cb ReaddirFunc) error {
	if h.filePath.Share == "" {
		return errz.New(errz.KindInvalidArgument, "readdir requires at least a share")
	}
	var out azurefile.DirsFilesListResult
	o := azurefile.BuildDirsFilesList(h.filePath, &out)
	if err := h.dispatch(ctx, o); err != nil {
		return err
	}
	for _, e := range out.Entries {
		entry := DirEntry{Name: e.Name}
		if e.IsDir {
			entry.Stat = Stat{Valid: StatType, EntType: EntDir}
		} else {
			entry.Stat = Stat{Valid: StatType | StatSize, EntType: EntFile, Size: e.Content}
		}
		if err := cb(entry); err != nil {
			return err
		}
	}
	return nil
}
