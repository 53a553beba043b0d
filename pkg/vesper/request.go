package vesper

import (
	"context"
	"strings"
	"sync"

	"github.com/FumingPower3925/vesper/internal/form"
	"github.com/FumingPower3925/vesper/internal/h1"
)

// RequestHead is the tokenized request head handed over by the transport.
type RequestHead = h1.Head

// Request is the context of one request cycle: the head, the assembled body
// and the decoded parameters. It is built once the body is complete and
// dropped after the response has been flushed.
type Request struct {
	head        *RequestHead
	body        []byte
	contentType string
	params      *Params
	url         string
	paths       []string
	clientIP    string
	ctx         context.Context
	session     Session
	values      map[string]any

	parseOnce sync.Once
}

// NewRequest builds a Request and eagerly decodes its query string.
func NewRequest(head *RequestHead, body []byte) *Request {
	r := &Request{
		head:        head,
		body:        body,
		contentType: head.Get("content-type"),
		params:      newParams(),
		url:         head.URI,
		paths:       splitPath(head.URI),
		ctx:         context.Background(),
	}
	if path, query, ok := form.SplitURI(head.URI); ok {
		r.url = path
		form.ParseQuery(query, r.setText)
	}
	return r
}

func splitPath(uri string) []string {
	return strings.FieldsFunc(uri, func(r rune) bool { return r == '/' })
}

func (r *Request) setText(key, value string) {
	r.params.Set(key, Text(value))
}

// Parse decodes the body according to the content type. Only the first call
// has any effect.
func (r *Request) Parse() {
	r.parseOnce.Do(r.parseBody)
}

func (r *Request) parseBody() {
	switch {
	case strings.HasPrefix(r.contentType, "application/x-www-form-urlencoded"):
		form.ParseURLEncoded(r.body, r.setText)
	case strings.HasPrefix(r.contentType, "multipart"):
		boundary, ok := form.Boundary(r.contentType)
		if !ok {
			return
		}
		form.ParseMultipart(r.body, boundary, r.addPart)
	}
}

func (r *Request) addPart(p form.Part) {
	if !p.IsFile() {
		r.params.Set(p.Name, Text(string(p.Data)))
		return
	}
	files := p.Filename
	if prev, ok := r.params.String(p.Name); ok && prev != "" {
		files = prev + "," + p.Filename
	}
	r.params.Set(p.Name, Text(files))
	r.params.Set(p.Filename, Binary(p.Data))
}

// Head returns the request head.
func (r *Request) Head() *RequestHead { return r.head }

// Method returns the request method.
func (r *Request) Method() string { return r.head.Method }

// URI returns the raw request target.
func (r *Request) URI() string { return r.head.URI }

// URL returns the request target without its query string.
func (r *Request) URL() string { return r.url }

// Paths returns the non-empty '/'-separated segments of the request target.
func (r *Request) Paths() []string { return r.paths }

// ClientIP returns the remote address of the connection.
func (r *Request) ClientIP() string { return r.clientIP }

// ContentType returns the Content-Type header.
func (r *Request) ContentType() string { return r.contentType }

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string { return r.head.Get(name) }

// Body returns the raw body bytes.
func (r *Request) Body() []byte { return r.body }

// BodyString returns the body as a string.
func (r *Request) BodyString() string { return string(r.body) }

// Params returns the decoded parameters.
func (r *Request) Params() *Params { return r.params }

// Int returns a parameter converted to an int.
func (r *Request) Int(key string) (int, bool) { return r.params.Int(key) }

// String returns a text parameter.
func (r *Request) String(key string) (string, bool) { return r.params.String(key) }

// Bytes returns a binary parameter.
func (r *Request) Bytes(key string) ([]byte, bool) { return r.params.Bytes(key) }

// Context returns the request context. It carries the request span.
func (r *Request) Context() context.Context { return r.ctx }

// Authorization returns the first Authorization header value.
func (r *Request) Authorization() string {
	return r.head.Get("authorization")
}

// Cookies returns every Cookie header value joined with ','.
func (r *Request) Cookies() string {
	return strings.Join(r.head.Values("cookie"), ",")
}

// Referer returns the Referer header.
func (r *Request) Referer() string {
	return r.head.Get("referer")
}

// Session returns the session attached to the request, if any.
func (r *Request) Session() Session {
	return r.session
}

// SetSession attaches s to the request. A request carries at most one
// session.
func (r *Request) SetSession(s Session) error {
	if r.session != nil {
		return ErrSessionAlreadySet
	}
	r.session = s
	return nil
}

// IsAuthenticated reports whether the request presents the token of its
// session, either as a bearer Authorization header or as a token cookie.
func (r *Request) IsAuthenticated() bool {
	if r.session == nil {
		return false
	}
	token := r.session.Token()
	if token == "" {
		return false
	}
	if r.Authorization() == "Bearer "+token {
		return true
	}
	return strings.Contains(r.Cookies(), "token="+token)
}

// Set stores a request-scoped value for middleware and handlers.
func (r *Request) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[key] = value
}

// Get returns a value stored with Set.
func (r *Request) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}
