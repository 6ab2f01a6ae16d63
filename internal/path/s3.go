package path

import "github.com/elasto/elasto/internal/errz"

// S3Kind distinguishes the three levels of an S3 path.
type S3Kind int

const (
	S3Root S3Kind = iota
	S3Bucket
	S3Object
)

// S3 is the S3 path model: {ROOT | BKT(bkt) | OBJ(bkt,obj)} plus
// addressing metadata.
type S3 struct {
	Kind   S3Kind
	Bucket string
	Object string

	Host            string
	Port            int
	BktAsHostPrefix bool
}

// ParseS3 parses "/b/o" style paths: no segment is ROOT, one is a bucket,
// two are a bucket and an object; a path with more than two segments is
// rejected with invalid-argument (NewObject builds keys containing '/').
// "///" collapses to ROOT.
func ParseS3(p string) (S3, error) {
	segs := splitSegments(p)
	switch len(segs) {
	case 0:
		return S3{Kind: S3Root}, nil
	case 1:
		return S3{Kind: S3Bucket, Bucket: segs[0]}, nil
	case 2:
		return S3{Kind: S3Object, Bucket: segs[0], Object: segs[1]}, nil
	default:
		return S3{}, errz.New(errz.KindInvalidArgument, "s3 path has more than bucket+object segments: %v", segs)
	}
}

// NewObject builds an OBJ path directly from a bucket and an (already
// assembled, possibly slash-containing) object key, bypassing the
// 2-segment parser restriction above. Builders use this for real keys.
func NewObject(bucket, object string) S3 {
	return S3{Kind: S3Object, Bucket: bucket, Object: object}
}

// Format renders the path model back to its normalised string form.
func (s S3) Format() string {
	switch s.Kind {
	case S3Root:
		return "/"
	case S3Bucket:
		return "/" + s.Bucket
	default:
		return "/" + s.Bucket + "/" + s.Object
	}
}
