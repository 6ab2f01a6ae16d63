package vfs

import (
	"context"
	"strconv"

	"github.com/elasto/elasto/internal/backend/web"
	"github.com/elasto/elasto/internal/op"
)

func (h *FileHandle) readWeb(ctx context.Context, buf []byte, off int64) (int, error) {
	o := web.BuildDLGet(h.webPath, op.IOV(buf, 0), off, int64(len(buf)))
	if err := h.dispatch(ctx, o); err != nil {
		return 0, err
	}
	return respContentLength(o, len(buf)), nil
}

func (h *FileHandle) statWeb(ctx context.Context) (Stat, error) {
	o := web.BuildDLHead(h.webPath)
	if err := h.dispatch(ctx, o); err != nil {
		return Stat{}, err
	}
	st := Stat{Valid: StatType | StatContentType, EntType: EntFile}
	if v, ok := o.RespHeaders.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.Valid |= StatSize
			st.Size = n
		}
	}
	if v, ok := o.RespHeaders.Get("Content-Type"); ok {
		st.ContentType = v
	}
	return st, nil
}
