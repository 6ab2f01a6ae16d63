package azureblob

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

func mustBlob(t *testing.T, p string) path.Blob {
	t.Helper()
	b, err := path.ParseBlob(p)
	if err != nil {
		t.Fatalf("ParseBlob(%q): %v", p, err)
	}
	return b
}

func TestBuildPutBlobBlockSetsBlobType(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	o, err := BuildPutBlob(b, KindBlockBlob, op.IOV([]byte("hi"), 0), "text/plain")
	if err != nil {
		t.Fatalf("BuildPutBlob: %v", err)
	}
	if got, _ := o.ReqHeaders.Get("x-ms-blob-type"); got != "BlockBlob" {
		t.Errorf("x-ms-blob-type = %q, want BlockBlob", got)
	}
	if o.URLPath != "/ctnr/blob" {
		t.Errorf("URLPath = %q, want /ctnr/blob", o.URLPath)
	}
}

func TestBuildPutBlobRejectsNonBlobPath(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr")
	_, err := BuildPutBlob(b, KindBlockBlob, op.None(), "")
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid-argument", errz.KindOf(err))
	}
}

func TestBuildPutPageRejectsUnalignedRange(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	_, err := BuildPutPage(b, 100, 512, op.None())
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid-argument for unaligned offset", errz.KindOf(err))
	}
}

func TestBuildPutBlockListRendersXML(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	o, err := BuildPutBlockList(b, []string{"block000000", "block000001"})
	if err != nil {
		t.Fatalf("BuildPutBlockList: %v", err)
	}
	body := string(o.ReqBody.Buf)
	first := base64.StdEncoding.EncodeToString([]byte("block000000"))
	second := base64.StdEncoding.EncodeToString([]byte("block000001"))
	if !contains(body, "<Latest>"+first+"</Latest>") || !contains(body, "<Latest>"+second+"</Latest>") {
		t.Errorf("body missing base64-encoded block entries: %s", body)
	}
}

func TestBuildPutBlockListRejectsMismatchedIDLengths(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	_, err := BuildPutBlockList(b, []string{"block1", "block000002"})
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid-argument for mismatched block id lengths", errz.KindOf(err))
	}
}

func TestBuildPutBlockListRejectsOversizeID(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	oversize := strings.Repeat("x", maxBlockIDLen+1)
	_, err := BuildPutBlockList(b, []string{oversize})
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid-argument for an oversize block id", errz.KindOf(err))
	}
}

func TestBuildPutBlockEncodesBlockIDQuery(t *testing.T) {
	b := mustBlob(t, "/acc/ctnr/blob")
	o, err := BuildPutBlock(b, "block000000", op.IOV([]byte("data"), 0))
	if err != nil {
		t.Fatalf("BuildPutBlock: %v", err)
	}
	want := base64.StdEncoding.EncodeToString([]byte("block000000"))
	var got string
	for _, kv := range o.URLQuery {
		if kv[0] == "blockid" {
			got = kv[1]
		}
	}
	if got != want {
		t.Errorf("blockid query = %q, want %q", got, want)
	}
}

func TestBuildListBlobsDecodesXML(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?>
<EnumerationResults>
  <Blobs>
    <Blob><Name>a.txt</Name><Properties><Content-Length>3</Content-Length></Properties></Blob>
    <Blob><Name>b.txt</Name><Properties><Content-Length>7</Content-Length></Properties></Blob>
  </Blobs>
  <NextMarker></NextMarker>
</EnumerationResults>`

	var out ListBlobsResult
	proc := listBlobsProcessor{out: &out}
	if err := proc.Process(nil, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(out.Blobs))
	}
	if out.Blobs[0].Name != "a.txt" || out.Blobs[0].ContentLength != 3 {
		t.Errorf("blobs[0] = %+v", out.Blobs[0])
	}
	if out.Blobs[1].Name != "b.txt" || out.Blobs[1].ContentLength != 7 {
		t.Errorf("blobs[1] = %+v", out.Blobs[1])
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func TestGetBlockListDecodesCommittedAndUncommitted(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?>
<BlockList>
  <CommittedBlocks>
    <Block><Name>block000000</Name><Size>2097152</Size></Block>
  </CommittedBlocks>
  <UncommittedBlocks>
    <Block><Name>block000001</Name><Size>1048576</Size></Block>
  </UncommittedBlocks>
</BlockList>`

	b := mustBlob(t, "/acc/ctnr/blob")
	var out GetBlockListResult
	o, err := BuildGetBlockList(b, &out)
	if err != nil {
		t.Fatalf("BuildGetBlockList: %v", err)
	}
	if err := o.Processor.Process(o, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(out.Blocks))
	}
	if out.Blocks[0].ID != "block000000" || out.Blocks[0].State != BlockCommitted || out.Blocks[0].Length != 2097152 {
		t.Errorf("blocks[0] = %+v", out.Blocks[0])
	}
	if out.Blocks[1].ID != "block000001" || out.Blocks[1].State != BlockUncommitted || out.Blocks[1].Length != 1048576 {
		t.Errorf("blocks[1] = %+v", out.Blocks[1])
	}
}
