package h1

import (
	"errors"
	"testing"
)

func TestParseHead(t *testing.T) {
	raw := "GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\nX-Custom:  spaced value \r\n\r\nBODY"
	p := NewParser()
	p.Reset([]byte(raw))

	head, framing, consumed, err := p.ParseHead()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if consumed != len(raw)-len("BODY") {
		t.Errorf("Expected %d bytes consumed, got %d", len(raw)-len("BODY"), consumed)
	}
	if head.Method != "GET" || head.URI != "/hello?x=1" {
		t.Errorf("Expected GET /hello?x=1, got %s %s", head.Method, head.URI)
	}
	if head.Version() != "HTTP/1.1" {
		t.Errorf("Expected HTTP/1.1, got %s", head.Version())
	}
	if got := head.Get("x-custom"); got != "spaced value" {
		t.Errorf("Expected trimmed header value, got %q", got)
	}
	if framing.Chunked || framing.ContentLength != 0 {
		t.Errorf("Expected no body framing, got %+v", framing)
	}
}

func TestParseHead_Incomplete(t *testing.T) {
	inputs := []string{
		"",
		"GET / HTTP/1.1",
		"GET / HTTP/1.1\r\nHost: a\r\n",
		"\r\n\r\n",
	}
	for _, in := range inputs {
		p := NewParser()
		p.Reset([]byte(in))
		head, _, consumed, err := p.ParseHead()
		if err != nil || consumed != 0 || head != nil {
			t.Errorf("%q: expected need-more-data, got head=%v consumed=%d err=%v", in, head, consumed, err)
		}
	}
}

func TestParseHead_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"short request line", "GET /\r\n\r\n", errInvalidRequestLine},
		{"empty method", " / HTTP/1.1\r\n\r\n", errInvalidRequestLine},
		{"header without colon", "GET / HTTP/1.1\r\nHost a\r\n\r\n", errInvalidHeaderLine},
		{"blank header name", "GET / HTTP/1.1\r\n  : x\r\n\r\n", errInvalidHeaderLine},
		{"missing host", "GET / HTTP/1.1\r\nAccept: */*\r\n\r\n", errMissingHost},
		{"unsupported version", "GET / HTTP/2.0\r\n\r\n", nil},
		{"bad content-length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 1x\r\n\r\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			p.Reset([]byte(tt.raw))
			_, _, _, err := p.ParseHead()
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseHead_HTTP10WithoutHost(t *testing.T) {
	p := NewParser()
	p.Reset([]byte("GET / HTTP/1.0\r\n\r\n"))
	head, _, _, err := p.ParseHead()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if head.Minor != 0 {
		t.Errorf("Expected minor version 0, got %d", head.Minor)
	}
}

func TestParseHead_Framing(t *testing.T) {
	p := NewParser()
	p.Reset([]byte("POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 42\r\n\r\n"))
	_, framing, _, err := p.ParseHead()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if framing.ContentLength != 42 || framing.Chunked {
		t.Errorf("Expected content-length 42, got %+v", framing)
	}

	p.Reset([]byte("POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: Chunked\r\nContent-Length: 42\r\n\r\n"))
	_, framing, _, err = p.ParseHead()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !framing.Chunked || framing.ContentLength != 0 {
		t.Errorf("Expected chunked framing to win, got %+v", framing)
	}
}

func TestParseHead_LeadingCRLF(t *testing.T) {
	p := NewParser()
	p.Reset([]byte("\r\n\r\nGET /next HTTP/1.1\r\nHost: a\r\n\r\n"))
	head, _, consumed, err := p.ParseHead()
	if err != nil || head == nil {
		t.Fatalf("Expected a head, got err=%v", err)
	}
	if head.URI != "/next" {
		t.Errorf("Expected /next, got %s", head.URI)
	}
	if consumed != 4+len("GET /next HTTP/1.1\r\nHost: a\r\n\r\n") {
		t.Errorf("Expected stray CRLFs to count as consumed, got %d", consumed)
	}
}

func TestHeadKeepAlive(t *testing.T) {
	tests := []struct {
		minor      int
		connection []string
		want       bool
	}{
		{1, nil, true},
		{1, []string{"close"}, false},
		{1, []string{"keep-alive, Close"}, false},
		{0, nil, false},
		{0, []string{"Keep-Alive"}, true},
		{0, []string{"upgrade", "keep-alive"}, true},
	}
	for _, tt := range tests {
		h := &Head{Method: "GET", URI: "/", Major: 1, Minor: tt.minor}
		for _, v := range tt.connection {
			h.Headers = append(h.Headers, [2]string{"Connection", v})
		}
		if got := h.KeepAlive(); got != tt.want {
			t.Errorf("HTTP/1.%d %v: expected %v, got %v", tt.minor, tt.connection, tt.want, got)
		}
	}
}

func TestHeadValues(t *testing.T) {
	h := &Head{Headers: [][2]string{{"Cookie", "a=1"}, {"Accept", "*/*"}, {"cookie", "b=2"}}}
	got := h.Values("COOKIE")
	if len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("Expected [a=1 b=2], got %v", got)
	}
	if h.Get("missing") != "" {
		t.Error("Expected empty value for a missing header")
	}
}

func TestParseChunkedBody(t *testing.T) {
	p := NewParser()
	p.Reset([]byte("5;name=v\r\nhello\r\n0\r\n\r\n"))

	chunk, consumed, err := p.ParseChunkedBody()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(chunk) != "hello" {
		t.Errorf("Expected hello, got %q", chunk)
	}
	if consumed != len("5;name=v\r\nhello\r\n") {
		t.Errorf("Expected first chunk consumption, got %d", consumed)
	}

	chunk, consumed, err = p.ParseChunkedBody()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if chunk != nil || consumed != len("0\r\n\r\n") {
		t.Errorf("Expected terminating chunk, got %q consumed=%d", chunk, consumed)
	}
}

func TestParseChunkedBody_Partial(t *testing.T) {
	for _, in := range []string{"5\r\nhel", "5", "0\r\n"} {
		p := NewParser()
		p.Reset([]byte(in))
		chunk, consumed, err := p.ParseChunkedBody()
		if err != nil || consumed != 0 || chunk != nil {
			t.Errorf("%q: expected need-more-data, got %q consumed=%d err=%v", in, chunk, consumed, err)
		}
	}
}

func TestParseChunkedBody_Errors(t *testing.T) {
	for _, in := range []string{"zz\r\n", "-1\r\n", "0\r\nTrailer: x\r\n\r\n"} {
		p := NewParser()
		p.Reset([]byte(in))
		if _, _, err := p.ParseChunkedBody(); err == nil {
			t.Errorf("%q: expected an error", in)
		}
	}
}
