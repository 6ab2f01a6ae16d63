// Package path implements the per-backend path models: an
// absolute POSIX-style path parses into a typed, backend-specific
// resource locator, and formats back to a normalised (slash-collapsed,
// no trailing slash) path.
package path

import (
	"strings"

	"github.com/elasto/elasto/internal/errz"
)

// BlobKind distinguishes the four levels of an Azure Blob path.
type BlobKind int

const (
	BlobRoot BlobKind = iota
	BlobAccount
	BlobContainer
	BlobBlob
)

// Blob is the Azure Blob (ABB/APB) path model: {ROOT | ACC | CTNR | BLOB}.
type Blob struct {
	Kind      BlobKind
	Account   string
	Container string
	BlobName  string
}

// ParseBlob parses "/acc/ctnr/blob", collapsing empty segments and
// rejecting trailing segments beyond blob name.
func ParseBlob(p string) (Blob, error) {
	segs := splitSegments(p)
	switch len(segs) {
	case 0:
		return Blob{Kind: BlobRoot}, nil
	case 1:
		return Blob{Kind: BlobAccount, Account: segs[0]}, nil
	case 2:
		return Blob{Kind: BlobContainer, Account: segs[0], Container: segs[1]}, nil
	case 3:
		return Blob{Kind: BlobBlob, Account: segs[0], Container: segs[1], BlobName: segs[2]}, nil
	default:
		return Blob{}, errz.New(errz.KindInvalidArgument, "blob path %q has segments beyond the blob name", p)
	}
}

// Format renders the path model back to its normalised string form.
func (b Blob) Format() string {
	switch b.Kind {
	case BlobRoot:
		return "/"
	case BlobAccount:
		return "/" + b.Account
	case BlobContainer:
		return "/" + b.Account + "/" + b.Container
	default:
		return "/" + b.Account + "/" + b.Container + "/" + b.BlobName
	}
}

// splitSegments collapses runs of '/' and strips leading/trailing slashes,
// returning the non-empty path segments in order.
func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
