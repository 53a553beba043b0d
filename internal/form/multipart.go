package form

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Part is one decoded multipart/form-data part.
type Part struct {
	Name     string
	Filename string // empty for plain fields
	Data     []byte
}

// IsFile reports whether the part carried a filename attribute.
func (p Part) IsFile() bool {
	return p.Filename != ""
}

// Boundary extracts the boundary attribute of a multipart content type.
func Boundary(contentType string) (string, bool) {
	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return "", false
	}
	b := contentType[idx+len("boundary="):]
	if end := strings.IndexByte(b, ';'); end >= 0 {
		b = b[:end]
	}
	b = strings.Trim(strings.TrimSpace(b), `"`)
	return b, b != ""
}

// ParseMultipart splits body on "--"+boundary and reports each part in wire
// order.
//
// Delimiters are located with a single forward scan and a running match
// counter; a boundary-like sequence inside part content is not escaped and
// will split that part. Parts whose header line is not valid UTF-8 or does
// not carry a quoted name attribute are skipped.
func ParseMultipart(body []byte, boundary string, fn func(Part)) {
	if boundary == "" {
		return
	}
	token := []byte("--" + boundary)
	offsets := delimiterOffsets(body, token)
	// The last offset belongs to the closing delimiter.
	for p := 0; p+1 < len(offsets); p++ {
		if part, ok := extractPart(body, offsets[p], offsets[p+1], len(token)); ok {
			fn(part)
		}
	}
}

// delimiterOffsets returns, for every occurrence of token, the index two
// bytes past its last byte (the LF of the CRLF that follows a delimiter).
func delimiterOffsets(body, token []byte) []int {
	var offsets []int
	count := 0
	for i, b := range body {
		if b == token[count] {
			count++
		} else {
			count = 0
		}
		if count == len(token) {
			offsets = append(offsets, i+2)
			count = 0
		}
	}
	return offsets
}

func extractPart(body []byte, from, next, tokenLen int) (Part, bool) {
	if from+1 >= len(body) {
		return Part{}, false
	}
	rel := bytes.IndexByte(body[from+1:], '\n')
	if rel < 0 {
		return Part{}, false
	}
	lineEnd := from + 1 + rel
	line := body[from:lineEnd]
	if !utf8.Valid(line) {
		return Part{}, false
	}

	pieces := splitNonEmpty(string(line), ';')
	if len(pieces) < 2 {
		return Part{}, false
	}
	name, ok := quotedAttr(pieces[1], "name=")
	if !ok || name == "" {
		return Part{}, false
	}

	start := lineEnd + 3
	end := next - tokenLen - 4 // inclusive
	if end >= len(body) {
		return Part{}, false
	}

	if len(pieces) > 2 {
		filename, ok := quotedAttr(pieces[2], "filename=")
		if !ok || filename == "" {
			return Part{}, false
		}
		// File parts carry an extra header line (Content-Type) before the payload.
		if start < end {
			if idx := bytes.IndexByte(body[start:end], '\n'); idx >= 0 {
				start += idx + 3
			}
		}
		data := []byte{}
		if start < end {
			data = bytes.Clone(body[start : end+1])
		}
		return Part{Name: name, Filename: filename, Data: data}, true
	}

	switch {
	case start == end+1:
		return Part{Name: name, Data: []byte{}}, true
	case start > end:
		return Part{}, false
	}
	value := body[start : end+1]
	if !utf8.Valid(value) {
		return Part{}, false
	}
	return Part{Name: name, Data: bytes.Clone(value)}, true
}

// quotedAttr reads key="value" out of a disposition token.
func quotedAttr(token, key string) (string, bool) {
	s := strings.TrimSpace(token)
	if !strings.HasPrefix(s, key+`"`) || !strings.HasSuffix(s, `"`) || len(s) < len(key)+2 {
		return "", false
	}
	return s[len(key)+1 : len(s)-1], true
}
