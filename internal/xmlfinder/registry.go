package xmlfinder

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/elasto/elasto/internal/errz"
)

// stackEntry tracks one open element: its local name and its 0-based
// sibling index among same-named children of its parent (0-based,
// left-to-right sibling order, per-name).
type stackEntry struct {
	name string
	idx  int
	text *strings.Builder
}

// Registry holds the set of finders driving one XML parse. Use
// NewRegistry, Register each finder, then Walk the body once.
type Registry struct {
	all    []*Finder
	active []*Finder
	stack  []stackEntry
	// siblingCounters[parentDepth][name] = next sibling index to assign.
	siblingCounters []map[string]int
}

// NewRegistry returns an empty finder registry.
func NewRegistry() *Registry {
	return &Registry{siblingCounters: []map[string]int{{}}}
}

// Register adds a finder. Absolute paths (leading "/") match from the
// document root; relative paths (leading "./") are only meaningful when
// registered from within an OpenFunc — they are scoped to the subtree of
// the element whose path-cb invocation is registering them, so they
// take effect from the current element's subtree.
func (r *Registry) Register(f *Finder) error {
	segs, absolute, err := parsePath(f.Path)
	if err != nil {
		return err
	}
	f.segs = segs
	f.absolute = absolute
	if !absolute {
		f.baseDepth = len(r.stack)
	}
	r.all = append(r.all, f)
	r.active = append(r.active, f)
	return nil
}

// Walk parses body once, firing registered finders as their paths match.
// After the parse, every Required finder that never fired yields a decode
// error.
func (r *Registry) Walk(body io.Reader) error {
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "xml token stream")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := r.onStart(t); err != nil {
				return err
			}
		case xml.CharData:
			if len(r.stack) > 0 {
				r.stack[len(r.stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if err := r.onEnd(); err != nil {
				return err
			}
		}
	}
	return r.checkRequired()
}

func (r *Registry) onStart(t xml.StartElement) error {
	name := t.Name.Local
	depth := len(r.stack)
	for len(r.siblingCounters) <= depth {
		r.siblingCounters = append(r.siblingCounters, map[string]int{})
	}
	idx := r.siblingCounters[depth][name]
	r.siblingCounters[depth][name] = idx + 1
	r.stack = append(r.stack, stackEntry{name: name, idx: idx, text: &strings.Builder{}})
	// A new child scope starts empty.
	r.siblingCounters = append(r.siblingCounters, map[string]int{})

	path := r.currentPath()

	// Attribute-selector finders fire immediately on open.
	for _, f := range r.active {
		elemSegs, attrName := f.elementSegs()
		if attrName == "" {
			continue
		}
		if !r.matchesElement(f, elemSegs) {
			continue
		}
		for _, a := range t.Attr {
			if a.Name.Local == attrName {
				if err := f.Consume(path+"[@"+attrName+"]", a.Value); err != nil {
					return err
				}
			}
		}
	}

	// path-cb finders fire on open of the exact (non-attribute) element.
	for _, f := range r.active {
		if f.Kind != ConsumePathCB {
			continue
		}
		elemSegs, attrName := f.elementSegs()
		if attrName != "" {
			continue
		}
		if !r.matchesElement(f, elemSegs) {
			continue
		}
		f.fired = true
		if f.PathCB != nil {
			if err := f.PathCB(r, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) onEnd() error {
	if len(r.stack) == 0 {
		return errz.New(errz.KindCorruptResponse, "xml: unbalanced end element")
	}
	path := r.currentPath()
	text := r.stack[len(r.stack)-1].text.String()

	for _, f := range r.active {
		if f.Kind == ConsumePathCB {
			continue
		}
		elemSegs, attrName := f.elementSegs()
		if attrName != "" {
			continue // attribute finders already fired on open.
		}
		if !r.matchesElement(f, elemSegs) {
			continue
		}
		if err := f.Consume(path, text); err != nil {
			return err
		}
	}

	// Pop this element's child sibling-counter scope and the element itself.
	r.siblingCounters = r.siblingCounters[:len(r.siblingCounters)-1]
	r.stack = r.stack[:len(r.stack)-1]

	// Drop relative finders whose subtree just closed.
	depth := len(r.stack)
	kept := r.active[:0]
	for _, f := range r.active {
		if !f.absolute && f.baseDepth > depth {
			continue
		}
		kept = append(kept, f)
	}
	r.active = kept
	return nil
}

// matchesElement reports whether the current stack satisfies f's element
// path steps (absolute: matched from the root; relative: matched from
// f.baseDepth).
func (r *Registry) matchesElement(f *Finder, segs []segment) bool {
	var base int
	if f.absolute {
		base = 0
	} else {
		base = f.baseDepth
	}
	if len(r.stack) != base+len(segs) {
		return false
	}
	for i, seg := range segs {
		e := r.stack[base+i]
		if !matchSeg(seg, e.name, e.idx) {
			return false
		}
	}
	return true
}

func (r *Registry) currentPath() string {
	var b strings.Builder
	for _, e := range r.stack {
		b.WriteByte('/')
		b.WriteString(e.name)
	}
	return b.String()
}

func (r *Registry) checkRequired() error {
	for _, f := range r.all {
		if f.Required && !f.fired {
			return errz.New(errz.KindCorruptResponse, "required xml finder %q did not fire", f.Path)
		}
	}
	return nil
}
