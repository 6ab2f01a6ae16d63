package op

import "strings"

// Header is a single (key, value) pair, preserving the caller's casing for
// output while supporting case-insensitive lookup.
type Header struct {
	Key   string
	Value string
}

// HeaderList is an ordered sequence of headers. Lookups are
// case-insensitive on key; multiple values per key preserve insertion
// order.
type HeaderList struct {
	items []Header
}

// Add appends a header, preserving any existing value(s) for the same key.
func (h *HeaderList) Add(key, value string) {
	h.items = append(h.items, Header{Key: key, Value: value})
}

// Set replaces all existing values for key with a single value.
func (h *HeaderList) Set(key, value string) {
	h.Del(key)
	h.Add(key, value)
}

// Del removes all headers matching key (case-insensitive).
func (h *HeaderList) Del(key string) {
	out := h.items[:0]
	for _, it := range h.items {
		if !strings.EqualFold(it.Key, key) {
			out = append(out, it)
		}
	}
	h.items = out
}

// Get returns the first value for key, and whether it was present.
func (h HeaderList) Get(key string) (string, bool) {
	for _, it := range h.items {
		if strings.EqualFold(it.Key, key) {
			return it.Value, true
		}
	}
	return "", false
}

// Values returns every value for key in insertion order.
func (h HeaderList) Values(key string) []string {
	var out []string
	for _, it := range h.items {
		if strings.EqualFold(it.Key, key) {
			out = append(out, it.Value)
		}
	}
	return out
}

// All returns every header in insertion order.
func (h HeaderList) All() []Header {
	return h.items
}

// Len reports the number of headers, including duplicate keys.
func (h HeaderList) Len() int { return len(h.items) }
