package s3

import (
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
)

func TestBuildBktCreateOmitsBodyForDefaultRegion(t *testing.T) {
	s := path.S3{Kind: path.S3Bucket, Bucket: "mybucket"}
	o, err := BuildBktCreate(s, "us-east-1")
	if err != nil {
		t.Fatalf("BuildBktCreate: %v", err)
	}
	if o.ReqBody.Size() != 0 {
		t.Errorf("expected no body for default region, got size %d", o.ReqBody.Size())
	}
}

func TestBuildBktCreateSendsLocationConstraint(t *testing.T) {
	s := path.S3{Kind: path.S3Bucket, Bucket: "mybucket"}
	o, err := BuildBktCreate(s, "eu-west-1")
	if err != nil {
		t.Fatalf("BuildBktCreate: %v", err)
	}
	if !strings.Contains(string(o.ReqBody.Buf), "<LocationConstraint>eu-west-1</LocationConstraint>") {
		t.Errorf("body missing LocationConstraint: %s", o.ReqBody.Buf)
	}
}

func TestBuildObjPutRejectsBucketPath(t *testing.T) {
	s := path.S3{Kind: path.S3Bucket, Bucket: "mybucket"}
	_, err := BuildObjPut(s, op.None(), "")
	if errz.KindOf(err) != errz.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid-argument", errz.KindOf(err))
	}
}

func TestSvcListDecodesBuckets(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?>
<ListAllMyBucketsResult>
  <Buckets>
    <Bucket><Name>alpha</Name><CreationDate>2020-01-01T00:00:00Z</CreationDate></Bucket>
    <Bucket><Name>beta</Name><CreationDate>2021-01-01T00:00:00Z</CreationDate></Bucket>
  </Buckets>
</ListAllMyBucketsResult>`

	var out SvcListResult
	proc := svcListProcessor{out: &out}
	if err := proc.Process(nil, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Buckets) != 2 || out.Buckets[0].Name != "alpha" || out.Buckets[1].Name != "beta" {
		t.Errorf("buckets = %+v", out.Buckets)
	}
}
