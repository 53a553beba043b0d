// Package h1 is the HTTP/1.x transport layer: it tokenizes request heads,
// frames request bodies and drives per-connection handlers from gnet event
// loops.
package h1

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errInvalidRequestLine = errors.New("invalid request line")
	errInvalidHeaderLine  = errors.New("invalid header line")
	errMissingHost        = errors.New("missing Host header")
	errHeadTooLarge       = errors.New("request head too large")
)

var crlf = []byte("\r\n")

// Head is a tokenized request head. It is immutable once handed to a Handler.
type Head struct {
	Method  string
	URI     string
	Major   int
	Minor   int
	Headers [][2]string // names as received on the wire
}

// Version returns the protocol version as it appears on the request line.
func (h *Head) Version() string {
	return "HTTP/" + strconv.Itoa(h.Major) + "." + strconv.Itoa(h.Minor)
}

// Get returns the first value of the named header (case-insensitive).
func (h *Head) Get(name string) string {
	for _, kv := range h.Headers {
		if strings.EqualFold(kv[0], name) {
			return kv[1]
		}
	}
	return ""
}

// Values returns every value of the named header in wire order.
func (h *Head) Values(name string) []string {
	var out []string
	for _, kv := range h.Headers {
		if strings.EqualFold(kv[0], name) {
			out = append(out, kv[1])
		}
	}
	return out
}

// KeepAlive reports whether the client expects the connection to stay open
// after the response. HTTP/1.1 and later default to keep-alive unless a
// "close" token is present; HTTP/1.0 only keeps alive when asked to.
func (h *Head) KeepAlive() bool {
	var sawClose, sawKeepAlive bool
	for _, v := range h.Values("connection") {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			switch {
			case strings.EqualFold(tok, "close"):
				sawClose = true
			case strings.EqualFold(tok, "keep-alive"):
				sawKeepAlive = true
			}
		}
	}
	if sawClose {
		return false
	}
	if h.Major > 1 || (h.Major == 1 && h.Minor >= 1) {
		return true
	}
	return sawKeepAlive
}

// Framing describes how the request body following a head is delimited.
type Framing struct {
	ContentLength int64
	Chunked       bool
}

// Parser tokenizes request heads and chunked bodies out of a byte buffer
// without copying until a head is complete.
type Parser struct {
	buf []byte
	pos int
}

// NewParser creates a new HTTP/1.x parser.
func NewParser() *Parser {
	return &Parser{}
}

// Reset resets the parser with new buffer data.
func (p *Parser) Reset(buf []byte) {
	p.buf = buf
	p.pos = 0
}

// ParseHead parses the request line and headers from the buffer. consumed is
// zero when more data is needed.
func (p *Parser) ParseHead() (head *Head, framing Framing, consumed int, err error) {
	// Stray CRLFs between pipelined requests are ignored (RFC 9112 §2.2).
	for bytes.HasPrefix(p.buf[p.pos:], crlf) {
		p.pos += 2
	}
	if p.pos >= len(p.buf) {
		return nil, Framing{}, 0, nil
	}

	head = &Head{}
	complete, err := p.parseRequestLine(head)
	if err != nil || !complete {
		return nil, Framing{}, 0, err
	}

	complete, err = p.parseHeaders(head, &framing)
	if err != nil || !complete {
		return nil, Framing{}, 0, err
	}

	if head.Major == 1 && head.Minor >= 1 && head.Get("host") == "" {
		return nil, Framing{}, 0, errMissingHost
	}
	return head, framing, p.pos, nil
}

// parseRequestLine parses METHOD SP URI SP VERSION CRLF, advancing p.pos.
// Returns complete=false if more data is needed.
func (p *Parser) parseRequestLine(head *Head) (bool, error) {
	lineEnd := bytes.Index(p.buf[p.pos:], crlf)
	if lineEnd == -1 {
		return false, nil
	}
	line := p.buf[p.pos : p.pos+lineEnd]
	p.pos += lineEnd + 2

	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false, errInvalidRequestLine
	}
	head.Method = string(parts[0])
	head.URI = string(parts[1])

	switch string(parts[2]) {
	case "HTTP/1.1":
		head.Major, head.Minor = 1, 1
	case "HTTP/1.0":
		head.Major, head.Minor = 1, 0
	default:
		return false, fmt.Errorf("unsupported HTTP version: %q", parts[2])
	}
	return true, nil
}

// parseHeaders parses headers until CRLF CRLF, advancing p.pos.
// Returns complete=false if more data is needed.
func (p *Parser) parseHeaders(head *Head, framing *Framing) (bool, error) {
	for {
		lineEnd := bytes.Index(p.buf[p.pos:], crlf)
		if lineEnd == -1 {
			return false, nil
		}
		line := p.buf[p.pos : p.pos+lineEnd]
		p.pos += lineEnd + 2
		if len(line) == 0 {
			return true, nil
		}
		colonIdx := bytes.IndexByte(line, ':')
		if colonIdx <= 0 {
			return false, errInvalidHeaderLine
		}
		name := string(bytes.TrimSpace(line[:colonIdx]))
		if name == "" {
			return false, errInvalidHeaderLine
		}
		value := string(bytes.TrimSpace(line[colonIdx+1:]))
		head.Headers = append(head.Headers, [2]string{name, value})

		switch {
		case strings.EqualFold(name, "content-length"):
			if framing.Chunked {
				continue
			}
			cl, ok := parseInt64(value)
			if !ok {
				return false, fmt.Errorf("invalid content-length: %q", value)
			}
			framing.ContentLength = cl
		case strings.EqualFold(name, "transfer-encoding"):
			if asciiContainsFold(value, "chunked") {
				framing.Chunked = true
				framing.ContentLength = 0
			}
		}
	}
}

// asciiContainsFold reports whether s contains sub under ASCII case-insensitive comparison.
func asciiContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// parseInt64 parses a base-10 non-negative int64, returning ok=false on error.
func parseInt64(s string) (int64, bool) {
	if len(s) == 0 || len(s) > 18 {
		return 0, false
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

// ParseChunkedBody parses one chunk of a chunked transfer-encoded body.
// It returns the chunk data and bytes consumed; consumed is zero when more
// data is needed and chunk is nil for the terminating zero-size chunk.
func (p *Parser) ParseChunkedBody() ([]byte, int, error) {
	if p.pos >= len(p.buf) {
		return nil, 0, nil
	}

	startPos := p.pos

	// Chunk size line: SIZE[;ext]\r\n
	lineEnd := bytes.Index(p.buf[p.pos:], crlf)
	if lineEnd == -1 {
		return nil, 0, nil
	}

	sizeLine := p.buf[p.pos : p.pos+lineEnd]
	p.pos += lineEnd + 2

	if semiIdx := bytes.IndexByte(sizeLine, ';'); semiIdx != -1 {
		sizeLine = sizeLine[:semiIdx]
	}

	size, err := strconv.ParseInt(string(bytes.TrimSpace(sizeLine)), 16, 64)
	if err != nil || size < 0 {
		return nil, 0, fmt.Errorf("invalid chunk size: %q", sizeLine)
	}

	if size == 0 {
		// Trailers are not supported; expect the final CRLF.
		if p.pos+2 > len(p.buf) {
			p.pos = startPos
			return nil, 0, nil
		}
		if !bytes.Equal(p.buf[p.pos:p.pos+2], crlf) {
			return nil, 0, errors.New("chunk trailers are not supported")
		}
		p.pos += 2
		return nil, p.pos - startPos, nil
	}

	if int64(len(p.buf)-p.pos) < size+2 {
		p.pos = startPos
		return nil, 0, nil
	}

	chunk := p.buf[p.pos : p.pos+int(size)]
	p.pos += int(size) + 2

	return chunk, p.pos - startPos, nil
}
