package path

import (
	"net/url"
	"strings"

	"github.com/elasto/elasto/internal/errz"
)

// Web is the read-only HTTP fetch backend's path model: {host, dl_path,
// insecure_http}. Only HTTP/HTTPS schemes are accepted; no explicit port
// (the host string may itself carry one).
type Web struct {
	Host         string
	DLPath       string
	InsecureHTTP bool
}

// ParseWeb parses an absolute "http://host/path" or "https://host/path" URL.
func ParseWeb(raw string) (Web, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Web{}, errz.Wrap(errz.KindInvalidArgument, err, "parsing web path %q", raw)
	}
	switch u.Scheme {
	case "http":
		return Web{Host: u.Host, DLPath: normalizeDLPath(u.Path), InsecureHTTP: true}, nil
	case "https":
		return Web{Host: u.Host, DLPath: normalizeDLPath(u.Path), InsecureHTTP: false}, nil
	default:
		return Web{}, errz.New(errz.KindInvalidArgument, "web path %q must be http or https", raw)
	}
}

func normalizeDLPath(p string) string {
	segs := splitSegments(p)
	return "/" + strings.Join(segs, "/")
}

// Format renders the path model back to its normalised string form.
func (w Web) Format() string {
	scheme := "https"
	if w.InsecureHTTP {
		scheme = "http"
	}
	return scheme + "://" + w.Host + w.DLPath
}
