package op

import (
	"io"
	"testing"
)

func TestHeaderListLookupIsCaseInsensitive(t *testing.T) {
	var h HeaderList
	h.Add("Content-Type", "text/plain")
	if v, ok := h.Get("content-type"); !ok || v != "text/plain" {
		t.Errorf("Get(content-type) = %q, %v", v, ok)
	}
	if _, ok := h.Get("Content-Length"); ok {
		t.Error("Get(Content-Length) found a header that was never added")
	}
}

func TestHeaderListPreservesMultiValueInsertionOrder(t *testing.T) {
	var h HeaderList
	h.Add("x-ms-meta-a", "1")
	h.Add("X-MS-META-A", "2")
	vs := h.Values("x-ms-meta-a")
	if len(vs) != 2 || vs[0] != "1" || vs[1] != "2" {
		t.Errorf("Values = %v, want [1 2]", vs)
	}
	h.Set("x-ms-meta-a", "3")
	if vs := h.Values("x-ms-meta-a"); len(vs) != 1 || vs[0] != "3" {
		t.Errorf("after Set, Values = %v, want [3]", vs)
	}
}

func TestIOVReaderRespectsOffset(t *testing.T) {
	ds := IOV([]byte("hello world"), 6)
	got, err := io.ReadAll(ds.Reader())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("read %q, want %q", got, "world")
	}
	if ds.Size() != 5 {
		t.Errorf("Size = %d, want 5", ds.Size())
	}
}

func TestCBReaderPullsWithMonotonicOffsets(t *testing.T) {
	src := make([]byte, 1000)
	for i := range src {
		src[i] = byte(i % 256)
	}
	var lastOff int64 = -1
	ds := CB(int64(len(src)), func(off int64, need int) ([]byte, int, error) {
		if off <= lastOff {
			t.Fatalf("producer offset went backwards: %d after %d", off, lastOff)
		}
		lastOff = off
		end := off + int64(need)
		if end > int64(len(src)) {
			end = int64(len(src))
		}
		return src[off:end], int(end - off), nil
	}, nil)

	got, err := io.ReadAll(ds.Reader())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(src) {
		t.Fatalf("read %d bytes, want %d", len(got), len(src))
	}
	for i := range got {
		if got[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], src[i])
		}
	}
}

func TestIOVWriterRejectsOverflow(t *testing.T) {
	buf := make([]byte, 4)
	w := IOV(buf, 0).Writer()
	if _, err := w.Write([]byte("1234")); err != nil {
		t.Fatalf("in-bounds write: %v", err)
	}
	if _, err := w.Write([]byte("5")); err == nil {
		t.Error("overflowing write did not fail")
	}
}

func TestCBWriterDeliversArrivalOffsets(t *testing.T) {
	var got []byte
	ds := CB(9, nil, func(off int64, n int, buf []byte) error {
		if off != int64(len(got)) {
			t.Fatalf("consumer offset = %d, want %d", off, len(got))
		}
		got = append(got, buf[:n]...)
		return nil
	})
	w := ds.Writer()
	for _, chunk := range []string{"abc", "def", "ghi"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write(%q): %v", chunk, err)
		}
	}
	if string(got) != "abcdefghi" {
		t.Errorf("consumer saw %q", got)
	}
}

func TestIsSuccessBoundaries(t *testing.T) {
	for _, tc := range []struct {
		status int
		want   bool
	}{
		{199, false}, {200, true}, {299, true}, {300, false}, {404, false},
	} {
		o := Op{RespStatus: tc.status}
		if o.IsSuccess() != tc.want {
			t.Errorf("IsSuccess(%d) = %v, want %v", tc.status, !tc.want, tc.want)
		}
	}
}
