package vfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/errz"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))

func TestOpenRejectsUnknownFlagBits(t *testing.T) {
	_, err := Open(context.Background(), BackendS3, Credentials{}, "/b", OpenFlags(1<<8), nil)
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unknown flag bit: got %v, want invalid-argument", err)
	}
}

func TestOpenRejectsExclWithoutCreate(t *testing.T) {
	_, err := Open(context.Background(), BackendS3, Credentials{}, "/b", FlagExcl, nil)
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("EXCL without CREATE: got %v, want invalid-argument", err)
	}
}

func TestOpenRejectsUnknownToken(t *testing.T) {
	_, err := Open(context.Background(), BackendS3, Credentials{}, "/b", 0, Tokens{"NO_SUCH_TOKEN": "x"})
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unknown token: got %v, want invalid-argument", err)
	}
}

func TestOpenWebRejectsCreate(t *testing.T) {
	_, err := Open(context.Background(), BackendWeb, Credentials{}, "http://example.com/f", FlagCreate, nil)
	if errz.KindOf(err) != errz.KindNotSupported {
		t.Errorf("web CREATE: got %v, want not-supported", err)
	}
}

// blobServer is an in-memory stand-in for the Azure blob endpoint: one
// container of named blobs, enough verbs for open/write/read/stat/lease.
type blobServer struct {
	blobs  map[string][]byte
	leased map[string]string // blob path -> lease id
}

func newBlobServer() *blobServer {
	return &blobServer{blobs: map[string][]byte{}, leased: map[string]string{}}
}

func (s *blobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("x-ms-request-id", "req-test")
	key := r.URL.Path

	switch r.URL.Query().Get("comp") {
	case "lease":
		s.serveLease(w, r, key)
		return
	case "blocklist":
		if r.Method != "GET" {
			break
		}
		body, ok := s.blobs[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		xml := `<?xml version="1.0"?><BlockList><CommittedBlocks><Block><Name>block000000</Name><Size>` +
			strconv.Itoa(len(body)) + `</Size></Block></CommittedBlocks><UncommittedBlocks></UncommittedBlocks></BlockList>`
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(xml))
		return
	}

	switch r.Method {
	case "HEAD":
		body, ok := s.blobs[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, held := s.leased[key]; held {
			w.Header().Set("x-ms-lease-state", "leased")
		}
		w.WriteHeader(http.StatusOK)
	case "GET":
		body, ok := s.blobs[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			if off, end, err := parseRange(rng); err == nil && off < len(body) {
				if end >= len(body) {
					end = len(body) - 1
				}
				body = body[off : end+1]
			}
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	case "PUT":
		if id, held := s.leased[key]; held && r.Header.Get("x-ms-lease-id") != id {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.blobs[key] = body
		w.WriteHeader(http.StatusCreated)
	case "DELETE":
		delete(s.blobs, key)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *blobServer) serveLease(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Header.Get("x-ms-lease-action") {
	case "acquire":
		if _, held := s.leased[key]; held {
			w.WriteHeader(http.StatusConflict)
			return
		}
		id := r.Header.Get("x-ms-proposed-lease-id")
		if id == "" {
			id = "lease-" + strconv.Itoa(len(s.leased)+1)
		}
		s.leased[key] = id
		w.Header().Set("x-ms-lease-id", id)
		w.WriteHeader(http.StatusCreated)
	case "release":
		if s.leased[key] != r.Header.Get("x-ms-lease-id") {
			w.WriteHeader(http.StatusConflict)
			return
		}
		delete(s.leased, key)
		w.WriteHeader(http.StatusOK)
	case "break":
		delete(s.leased, key)
		w.WriteHeader(http.StatusAccepted)
	case "renew":
		if s.leased[key] != r.Header.Get("x-ms-lease-id") {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

// parseRange handles the "bytes=a-b" form the blob builders emit.
func parseRange(v string) (off, end int, err error) {
	v = strings.TrimPrefix(v, "bytes=")
	parts := strings.SplitN(v, "-", 2)
	if off, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, err
	}
	if end, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, err
	}
	return off, end, nil
}

func testCreds(srv *httptest.Server) Credentials {
	return Credentials{
		Account:      "acc",
		AccountKey:   testKey,
		Host:         strings.TrimPrefix(srv.URL, "http://"),
		InsecureHTTP: true,
	}
}

func TestAzureBlobWriteReadRoundTrip(t *testing.T) {
	backend := newBlobServer()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	ctx := context.Background()

	h, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42/io_test", FlagCreate, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close(ctx)

	src := make([]byte, 1024)
	for i := range src {
		src[i] = byte(i % 256)
	}
	if n, err := h.Write(ctx, src, 0); err != nil || n != len(src) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	got := make([]byte, 1024)
	n, err := h.Read(ctx, got, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(src) || !bytes.Equal(got[:n], src) {
		t.Errorf("read back %d bytes, mismatch with written pattern", n)
	}

	st, err := h.Stat(ctx)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Valid&StatSize == 0 || st.Size != 1024 {
		t.Errorf("Stat size = %d (valid 0x%x), want 1024", st.Size, st.Valid)
	}
	if st.EntType != EntFile {
		t.Errorf("EntType = %v, want file", st.EntType)
	}
}

func TestOpenExclFailsOnExistingBlob(t *testing.T) {
	backend := newBlobServer()
	backend.blobs["/c42/existing"] = []byte("data")
	srv := httptest.NewServer(backend)
	defer srv.Close()

	_, err := Open(context.Background(), BackendAzureBlockBlob, testCreds(srv), "/acc/c42/existing", FlagCreate|FlagExcl, nil)
	if errz.KindOf(err) != errz.KindExists {
		t.Errorf("CREATE|EXCL on existing blob: got %v, want exists", err)
	}
}

func TestOpenWithoutCreateFailsOnMissingBlob(t *testing.T) {
	backend := newBlobServer()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	_, err := Open(context.Background(), BackendAzureBlockBlob, testCreds(srv), "/acc/c42/absent", 0, nil)
	if errz.KindOf(err) != errz.KindNotFound {
		t.Errorf("open without CREATE on missing blob: got %v, want not-found", err)
	}
}

func TestLeaseContention(t *testing.T) {
	backend := newBlobServer()
	backend.blobs["/c42/locked"] = []byte("data")
	srv := httptest.NewServer(backend)
	defer srv.Close()
	ctx := context.Background()

	a, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42/locked", 0, nil)
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}
	b, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42/locked", 0, nil)
	if err != nil {
		t.Fatalf("Open B: %v", err)
	}

	if err := a.LeaseAcquire(ctx, LeaseInfinite); err != nil {
		t.Fatalf("A acquire: %v", err)
	}
	if err := b.LeaseAcquire(ctx, LeaseInfinite); err == nil {
		t.Fatal("B acquired a lease A already holds")
	}
	// B's failed acquire must leave it able to retry.
	if err := b.LeaseBreak(ctx); err != nil {
		t.Fatalf("B break: %v", err)
	}
	if err := b.LeaseAcquire(ctx, LeaseInfinite); err != nil {
		t.Fatalf("B acquire after break: %v", err)
	}

	// Closing A after its lease was broken must not fail even though the
	// server no longer recognises A's lease id.
	if err := a.Close(ctx); err != nil {
		t.Errorf("Close A after broken lease: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Errorf("Close B: %v", err)
	}
}

func TestListBlocksReportsCommittedBlocks(t *testing.T) {
	backend := newBlobServer()
	backend.blobs["/c42/staged"] = make([]byte, 2048)
	srv := httptest.NewServer(backend)
	defer srv.Close()
	ctx := context.Background()

	h, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42/staged", 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close(ctx)

	blocks, err := h.ListBlocks(ctx)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 || !blocks[0].Committed || blocks[0].Length != 2048 {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestDirectoryHandleRejectsDataOps(t *testing.T) {
	backend := newBlobServer()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	ctx := context.Background()

	h, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42", FlagDirectory|FlagCreate, nil)
	if err != nil {
		t.Fatalf("Open dir: %v", err)
	}
	defer h.Close(ctx)

	if _, err := h.Read(ctx, make([]byte, 8), 0); errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("Read on directory handle: got %v, want invalid-argument", err)
	}
	if _, err := h.Write(ctx, []byte("x"), 0); errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("Write on directory handle: got %v, want invalid-argument", err)
	}
}

func TestClosedHandleRejectsOperations(t *testing.T) {
	backend := newBlobServer()
	backend.blobs["/c42/f"] = []byte("data")
	srv := httptest.NewServer(backend)
	defer srv.Close()
	ctx := context.Background()

	h, err := Open(ctx, BackendAzureBlockBlob, testCreds(srv), "/acc/c42/f", 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := h.Read(ctx, make([]byte, 8), 0); errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("Read after Close: got %v, want invalid-argument", err)
	}
}

func TestPageBlobWriteRejectsUnalignedOffsetBeforeIO(t *testing.T) {
	// No server at all: the alignment check must fire before any network IO.
	h := &FileHandle{backend: BackendAzurePageBlob, blobKind: azureblob.KindPageBlob, state: stateOpen}
	if _, err := h.Write(context.Background(), make([]byte, 512), 100); errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unaligned page write: got %v, want invalid-argument", err)
	}
	if _, err := h.Write(context.Background(), make([]byte, 100), 512); errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("unaligned page length: got %v, want invalid-argument", err)
	}
}
