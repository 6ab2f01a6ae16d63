package azurefile

import (
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

func TestFileURLJoinsParentDirSegments(t *testing.T) {
	f := path.File{Account: "acc", Share: "docs", ParentDir: "a/b", FSEnt: "report.txt"}
	o := BuildFileGet(f, op.None(), 0, 0)
	if o.URLPath != "/docs/a/b/report.txt" {
		t.Errorf("URLPath = %q, want /docs/a/b/report.txt", o.URLPath)
	}
}

func TestDirsFilesListDecodesMixedEntries(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?>
<EnumerationResults>
  <Entries>
    <Directory><Name>sub</Name></Directory>
    <File><Name>a.txt</Name><Properties><Content-Length>5</Content-Length></Properties></File>
  </Entries>
</EnumerationResults>`

	var out DirsFilesListResult
	proc := dirsFilesListProcessor{out: &out}
	if err := proc.Process(nil, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(out.Entries))
	}
	if !out.Entries[0].IsDir || out.Entries[0].Name != "sub" {
		t.Errorf("entries[0] = %+v", out.Entries[0])
	}
	if out.Entries[1].IsDir || out.Entries[1].Name != "a.txt" || out.Entries[1].Content != 5 {
		t.Errorf("entries[1] = %+v", out.Entries[1])
	}
}
