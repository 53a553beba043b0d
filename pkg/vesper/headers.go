package vesper

import "strings"

// Headers is an ordered collection of response headers. Names keep the case
// they were added with; lookups ignore case.
type Headers struct {
	headers [][2]string
}

// Add appends a header, keeping existing values of the same name.
func (h *Headers) Add(name, value string) {
	h.headers = append(h.headers, [2]string{name, value})
}

// Set replaces every value of name with value.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get returns the first value of name.
func (h *Headers) Get(name string) string {
	for _, kv := range h.headers {
		if strings.EqualFold(kv[0], name) {
			return kv[1]
		}
	}
	return ""
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	for _, kv := range h.headers {
		if strings.EqualFold(kv[0], name) {
			return true
		}
	}
	return false
}

// Del removes every value of name.
func (h *Headers) Del(name string) {
	out := h.headers[:0]
	for _, kv := range h.headers {
		if !strings.EqualFold(kv[0], name) {
			out = append(out, kv)
		}
	}
	h.headers = out
}

// Len returns the number of header lines.
func (h *Headers) Len() int {
	return len(h.headers)
}

// All returns the header lines in insertion order.
func (h *Headers) All() [][2]string {
	return h.headers
}
