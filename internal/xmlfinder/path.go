package xmlfinder

import (
	"strconv"
	"strings"

	"github.com/elasto/elasto/internal/errz"
)

// parsePath parses the supported xpath subset: absolute (/a/b) and
// relative (./a) paths; "*" wildcards; bracketed 0-based sibling indices
// "[i]"; and a trailing attribute selector "[@name]".
func parsePath(p string) (segs []segment, absolute bool, err error) {
	switch {
	case strings.HasPrefix(p, "/"):
		absolute = true
		p = strings.TrimPrefix(p, "/")
	case strings.HasPrefix(p, "./"):
		absolute = false
		p = strings.TrimPrefix(p, "./")
	case p == ".":
		return nil, false, nil
	default:
		return nil, false, errz.New(errz.KindInvalidArgument, "xpath %q must start with / or ./", p)
	}

	raw := strings.Split(p, "/")
	segs = make([]segment, 0, len(raw))
	for i, r := range raw {
		seg, err := parseSegment(r)
		if err != nil {
			return nil, false, errz.Wrap(errz.KindInvalidArgument, err, "xpath %q", p)
		}
		if seg.isAttr && i != len(raw)-1 {
			return nil, false, errz.New(errz.KindInvalidArgument, "xpath %q: attribute selector must be the last step", p)
		}
		segs = append(segs, seg)
	}
	return segs, absolute, nil
}

func parseSegment(r string) (segment, error) {
	open := strings.IndexByte(r, '[')
	if open < 0 {
		return segment{name: r}, nil
	}
	if !strings.HasSuffix(r, "]") {
		return segment{}, errz.New(errz.KindInvalidArgument, "malformed bracket in %q", r)
	}
	name := r[:open]
	inner := r[open+1 : len(r)-1]
	if strings.HasPrefix(inner, "@") {
		return segment{name: name, isAttr: true, attrName: strings.TrimPrefix(inner, "@")}, nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil {
		return segment{}, errz.Wrap(errz.KindInvalidArgument, err, "bad index in %q", r)
	}
	return segment{name: name, hasIndex: true, index: idx}, nil
}

// elementSegs returns the element path steps, and the attribute name if
// the path ends in an attribute selector. An attribute step still names
// its element (`/a/b[@x]` selects attribute x on element b), so the final
// step is kept as a plain element match.
func (f *Finder) elementSegs() ([]segment, string) {
	n := len(f.segs)
	if n > 0 && f.segs[n-1].isAttr {
		last := f.segs[n-1]
		segs := make([]segment, n)
		copy(segs, f.segs[:n-1])
		segs[n-1] = segment{name: last.name, hasIndex: last.hasIndex, index: last.index}
		return segs, last.attrName
	}
	return f.segs, ""
}

// matchSeg reports whether a stack entry satisfies one path segment.
func matchSeg(seg segment, name string, idx int) bool {
	if seg.name != "*" && seg.name != name {
		return false
	}
	if seg.hasIndex && seg.index != idx {
		return false
	}
	return true
}
