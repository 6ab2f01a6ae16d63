package multipart

import (
	"context"
	"testing"

	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

func TestPartStreamIOVSlicesCorrectRange(t *testing.T) {
	data := []byte("0123456789abcdef")
	src := op.IOV(data, 0)
	u := &Uploader{}
	part := u.partStream(src, 4, 6)
	if part.Size() != 6 {
		t.Fatalf("size = %d, want 6", part.Size())
	}
	buf := make([]byte, 6)
	n, err := part.Reader().Read(buf)
	if err != nil && n == 0 {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "456789" {
		t.Errorf("part bytes = %q, want 456789", buf[:n])
	}
}

func TestPartStreamCBTranslatesOffset(t *testing.T) {
	data := []byte("0123456789abcdef")
	out := func(streamOff int64, need int) ([]byte, int, error) {
		end := streamOff + int64(need)
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		if streamOff >= end {
			return nil, 0, nil
		}
		return data[streamOff:end], int(end - streamOff), nil
	}
	src := op.CB(int64(len(data)), out, nil)
	u := &Uploader{}
	part := u.partStream(src, 10, 4)
	if part.Size() != 4 {
		t.Fatalf("size = %d, want 4", part.Size())
	}
	buf := make([]byte, 4)
	n, err := part.Reader().Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "abcd" {
		t.Errorf("part bytes = %q, want abcd", buf[:n])
	}
}

func TestPutRejectsOversizedPartSize(t *testing.T) {
	u := &Uploader{PartSize: PerPartCeiling + 1}
	dst := path.Blob{Kind: path.BlobBlob, Account: "acc", Container: "c", BlobName: "b"}
	err := u.Put(context.Background(), nil, dst, op.None(), 0)
	if err == nil {
		t.Fatal("expected error for oversized part size")
	}
}
