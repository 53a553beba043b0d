package vesper

import (
	"strconv"

	"github.com/google/uuid"
)

// Kind tells which variant a Value holds.
type Kind uint8

const (
	// KindText marks a decoded text value.
	KindText Kind = iota
	// KindBinary marks raw bytes, as uploaded in a multipart file part.
	KindBinary
)

// Value is a request parameter: either text or a binary blob.
type Value struct {
	kind Kind
	text string
	data []byte
}

// Text returns a text Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Binary returns a binary Value holding b.
func Binary(b []byte) Value {
	return Value{kind: KindBinary, data: b}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind {
	return v.kind
}

// Text returns the text of a text value.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// Bytes returns the payload of a binary value.
func (v Value) Bytes() ([]byte, bool) {
	return v.data, v.kind == KindBinary
}

// Params holds the decoded parameters of one request. Keys are unique and
// the most recent write wins.
type Params struct {
	values map[string]Value
}

func newParams() *Params {
	return &Params{values: make(map[string]Value)}
}

// Set stores v under key, replacing any previous value.
func (p *Params) Set(key string, v Value) {
	p.values[key] = v
}

// Value returns the raw value stored under key.
func (p *Params) Value(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of stored parameters.
func (p *Params) Len() int {
	return len(p.values)
}

// Keys returns the stored keys in no particular order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	return keys
}

// String returns a text parameter.
func (p *Params) String(key string) (string, bool) {
	v, ok := p.values[key]
	if !ok {
		return "", false
	}
	return v.Text()
}

// Bytes returns a binary parameter.
func (p *Params) Bytes(key string) ([]byte, bool) {
	v, ok := p.values[key]
	if !ok {
		return nil, false
	}
	return v.Bytes()
}

// Int converts a text parameter to an int.
func (p *Params) Int(key string) (int, bool) {
	s, ok := p.String(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Float converts a text parameter to a float64.
func (p *Params) Float(key string) (float64, bool) {
	s, ok := p.String(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// UUID converts a text parameter in canonical 36-character form to a UUID.
func (p *Params) UUID(key string) (uuid.UUID, bool) {
	s, ok := p.String(key)
	if !ok || len(s) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}
