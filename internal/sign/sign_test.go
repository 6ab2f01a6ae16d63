package sign

import (
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/op"
)

func TestCanonicalXMSHeadersSortedAndTrimmed(t *testing.T) {
	var hdrs op.HeaderList
	hdrs.Add("x-ms-version", "  2021-08-06  ")
	hdrs.Add("x-ms-meta-foo", "bar")
	hdrs.Add("X-MS-Meta-Foo", "baz") // same key, different case
	hdrs.Add("Content-Type", "text/plain")

	got := canonicalXMSHeaders(hdrs)
	want := "x-ms-meta-foo:bar,baz\nx-ms-version:2021-08-06\n"
	if got != want {
		t.Errorf("canonicalXMSHeaders = %q, want %q", got, want)
	}
}

func TestAzureSharedKeyFullSignsDeterministically(t *testing.T) {
	var o op.Op
	o.Method = op.MethodGET
	o.URLPath = "/ctnr/blob"
	o.ReqHeaders.Set("Content-Length", "0")
	o.ReqHeaders.Set("Date", "Mon, 01 Jan 2024 00:00:00 GMT")
	o.ReqHeaders.Set("x-ms-version", "2021-08-06")

	key, err := DecodeAccountKey("c2VjcmV0a2V5MTIzNDU2Nzg=")
	if err != nil {
		t.Fatalf("DecodeAccountKey: %v", err)
	}
	s := &AzureSharedKeyFull{Account: "myacct", Key: key}
	if err := s.Sign(&o); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	auth, ok := o.ReqHeaders.Get("Authorization")
	if !ok || !strings.HasPrefix(auth, "SharedKey myacct:") {
		t.Errorf("Authorization header = %q", auth)
	}

	// Signing twice from the same Op state must be deterministic.
	o2 := o
	o2.ReqHeaders.Del("Authorization")
	s.Sign(&o2)
	auth2, _ := o2.ReqHeaders.Get("Authorization")
	if auth != auth2 {
		t.Errorf("signature not deterministic: %q vs %q", auth, auth2)
	}
}

func TestAzureSharedKeyLiteUsesFirstQueryParamOnly(t *testing.T) {
	var o op.Op
	o.Method = op.MethodGET
	o.URLPath = "/"
	o.AddQuery("comp", "list")
	o.AddQuery("other", "ignored")

	canon := canonicalAzureLite("acct", &o)
	if !strings.Contains(canon, "comp:list") {
		t.Errorf("lite canonical string missing comp:list: %q", canon)
	}
	if strings.Contains(canon, "other") {
		t.Errorf("lite canonical string must not include second query param: %q", canon)
	}
}

func TestS3V2CanonicalResourceSubResourcesOnly(t *testing.T) {
	var q [][2]string
	q = append(q, [2]string{"uploadId", "abc"})
	q = append(q, [2]string{"notASubResource", "x"})
	got := canonicalS3Resource("bkt", "key", q)
	want := "/bkt/key?uploadId=abc"
	if got != want {
		t.Errorf("canonicalS3Resource = %q, want %q", got, want)
	}
}

func TestS3V2SignAddsAuthorizationHeader(t *testing.T) {
	var o op.Op
	o.Method = op.MethodPUT
	o.ReqHeaders.Set("Date", "Mon, 01 Jan 2024 00:00:00 GMT")
	s := &S3V2{AccessKeyID: "AKIDEXAMPLE", SecretKey: []byte("secret"), Bucket: "bkt", Object: "key"}
	if err := s.Sign(&o); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	auth, ok := o.ReqHeaders.Get("Authorization")
	if !ok || !strings.HasPrefix(auth, "AWS AKIDEXAMPLE:") {
		t.Errorf("Authorization header = %q", auth)
	}
}
