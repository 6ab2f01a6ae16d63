package path

import "testing"

func TestBlobRoundTrip(t *testing.T) {
	cases := []string{"/", "/acc", "/acc/ctnr", "/acc/ctnr/blob", "//acc//ctnr///blob/"}
	want := []string{"/", "/acc", "/acc/ctnr", "/acc/ctnr/blob", "/acc/ctnr/blob"}
	for i, c := range cases {
		b, err := ParseBlob(c)
		if err != nil {
			t.Fatalf("ParseBlob(%q): %v", c, err)
		}
		if got := b.Format(); got != want[i] {
			t.Errorf("ParseBlob(%q).Format() = %q, want %q", c, got, want[i])
		}
	}
}

func TestBlobRejectsExtraSegments(t *testing.T) {
	if _, err := ParseBlob("/acc/ctnr/blob/extra"); err == nil {
		t.Fatal("expected error for trailing segments beyond blob")
	}
}

func TestS3PathParse(t *testing.T) {
	s, err := ParseS3("/b/o")
	if err != nil {
		t.Fatalf("ParseS3(/b/o): %v", err)
	}
	if s.Kind != S3Object || s.Bucket != "b" || s.Object != "o" {
		t.Errorf("ParseS3(/b/o) = %+v", s)
	}

	s, err = ParseS3("///")
	if err != nil {
		t.Fatalf("ParseS3(///): %v", err)
	}
	if s.Kind != S3Root {
		t.Errorf("ParseS3(///) = %+v, want ROOT", s)
	}

	if _, err := ParseS3("/b/o/x"); err == nil {
		t.Fatal("expected invalid-argument for /b/o/x")
	}
}

func TestFileRoundTrip(t *testing.T) {
	f, err := ParseFile("/acc/share/truth/is")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if f.Account != "acc" || f.Share != "share" || f.ParentDir != "truth" || f.FSEnt != "is" {
		t.Errorf("ParseFile = %+v", f)
	}
	if got, want := f.Format(), "/acc/share/truth/is"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestWebRoundTrip(t *testing.T) {
	w, err := ParseWeb("https://example.com/a/b")
	if err != nil {
		t.Fatalf("ParseWeb: %v", err)
	}
	if w.Host != "example.com" || w.DLPath != "/a/b" || w.InsecureHTTP {
		t.Errorf("ParseWeb = %+v", w)
	}
	if got, want := w.Format(), "https://example.com/a/b"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestWebRejectsNonHTTPScheme(t *testing.T) {
	if _, err := ParseWeb("ftp://example.com/a"); err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}
