// Package xmlfinder implements the streaming XML decoder:
// a registry of XPath "finders" is driven against a single pass over an
// XML byte stream using stdlib encoding/xml's token cursor, firing as
// matching elements/attributes are parsed without ever materialising a
// DOM. This underlies every listing/metadata response decode in elasto.
package xmlfinder

import (
	"encoding/base64"
	"strconv"

	"github.com/elasto/elasto/internal/errz"
)

// ConsumerKind selects which consumer variant a Finder
// uses.
type ConsumerKind int

const (
	ConsumeString ConsumerKind = iota
	ConsumeInt32
	ConsumeInt64
	ConsumeUint64
	ConsumeBool
	ConsumeBase64
	ConsumeCB
	ConsumePathCB
)

// LeafFunc is invoked for cb-kind finders with the matched path and its
// text value.
type LeafFunc func(path, val string) error

// OpenFunc is invoked for path-cb-kind finders when a matching element
// opens. It may call reg.Register to add finders rooted at this element's
// subtree (relative paths, resolved from the current depth).
type OpenFunc func(reg *Registry, path string) error

// Finder binds an xpath expression, whether it is required, and the
// consumer that fires when it matches.
type Finder struct {
	Path     string
	Required bool
	Kind     ConsumerKind

	StringOut *string
	Int32Out  *int32
	Int64Out  *int64
	Uint64Out *uint64
	BoolOut   *bool
	Base64Out *[]byte
	CB        LeafFunc
	PathCB    OpenFunc

	segs      []segment
	absolute  bool
	fired     bool
	baseDepth int // 0 for absolute finders; set for relative finders added via path-cb
}

// segment is one parsed step of an xpath expression.
type segment struct {
	name     string // "*" for wildcard
	hasIndex bool
	index    int
	isAttr   bool
	attrName string
}

// Consume applies the finder's consumer to a text value (element text or
// attribute text) and marks it fired.
func (f *Finder) Consume(path, val string) error {
	f.fired = true
	switch f.Kind {
	case ConsumeString:
		if f.StringOut != nil {
			*f.StringOut = val
		}
	case ConsumeInt32:
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "finder %q: not a base-10 int32: %q", path, val)
		}
		if f.Int32Out != nil {
			*f.Int32Out = int32(n)
		}
	case ConsumeInt64:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "finder %q: not a base-10 int64: %q", path, val)
		}
		if f.Int64Out != nil {
			*f.Int64Out = n
		}
	case ConsumeUint64:
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "finder %q: not a base-10 uint64: %q", path, val)
		}
		if f.Uint64Out != nil {
			*f.Uint64Out = n
		}
	case ConsumeBool:
		switch val {
		case "true":
			if f.BoolOut != nil {
				*f.BoolOut = true
			}
		case "false":
			if f.BoolOut != nil {
				*f.BoolOut = false
			}
		default:
			return errz.New(errz.KindCorruptResponse, "finder %q: not true/false: %q", path, val)
		}
	case ConsumeBase64:
		b, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "finder %q: not valid base64: %q", path, val)
		}
		if f.Base64Out != nil {
			*f.Base64Out = b
		}
	case ConsumeCB:
		if f.CB != nil {
			return f.CB(path, val)
		}
	}
	return nil
}
