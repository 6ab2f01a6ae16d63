package web

import (
	"testing"

	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

func TestBuildDLGetSetsRangeHeader(t *testing.T) {
	w, err := path.ParseWeb("https://example.com/a/b")
	if err != nil {
		t.Fatalf("ParseWeb: %v", err)
	}
	o := BuildDLGet(w, op.None(), 100, 50)
	got, ok := o.ReqHeaders.Get("Range")
	if !ok || got != "bytes=100-149" {
		t.Errorf("Range = %q, ok=%v, want bytes=100-149", got, ok)
	}
	if o.URLPath != "/a/b" || o.URLHost != "example.com" {
		t.Errorf("URLHost/Path = %q %q", o.URLHost, o.URLPath)
	}
}

func TestBuildDLGetOmitsRangeWhenZeroLength(t *testing.T) {
	w, _ := path.ParseWeb("http://example.com/x")
	o := BuildDLGet(w, op.None(), 0, 0)
	if _, ok := o.ReqHeaders.Get("Range"); ok {
		t.Error("expected no Range header for zero-length request")
	}
}

func TestBuildDLHeadUsesHeadMethod(t *testing.T) {
	w, _ := path.ParseWeb("http://example.com/x")
	o := BuildDLHead(w)
	if o.Method != op.MethodHEAD {
		t.Errorf("Method = %v, want HEAD", o.Method)
	}
}
