package vesper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Response is filled in by a handler and flushed once Complete is called.
type Response struct {
	status    int
	headers   Headers
	body      bytes.Buffer
	completed atomic.Bool
	hooks     []func(*Response)
	done      func(*Response)
}

// NewResponse returns an empty response with status 200. Completing it only
// runs its hooks; responses built by an ErrorHandler are flushed by the
// caller.
func NewResponse() *Response {
	return &Response{status: 200}
}

func newResponse(done func(*Response)) *Response {
	r := NewResponse()
	r.done = done
	return r
}

// Status returns the status code.
func (r *Response) Status() int {
	return r.status
}

// Headers returns the response headers.
func (r *Response) Headers() *Headers {
	return &r.headers
}

// AddHeader appends a response header.
func (r *Response) AddHeader(name, value string) {
	r.headers.Add(name, value)
}

// SetHeader replaces a response header.
func (r *Response) SetHeader(name, value string) {
	r.headers.Set(name, value)
}

// Write appends p to the body.
func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) {
	return r.body.WriteString(s)
}

// Body returns the body written so far.
func (r *Response) Body() []byte {
	return r.body.Bytes()
}

// Send appends data to the body.
func (r *Response) Send(data []byte) {
	r.body.Write(data)
}

// SendString formats into the body and sets a plain text content type.
func (r *Response) SendString(format string, args ...any) {
	r.headers.Set("Content-Type", "text/plain; charset=utf-8")
	if len(args) > 0 {
		fmt.Fprintf(&r.body, format, args...)
		return
	}
	r.body.WriteString(format)
}

// SendHTML appends html to the body and sets an HTML content type.
func (r *Response) SendHTML(html string) {
	r.headers.Set("Content-Type", "text/html; charset=utf-8")
	r.body.WriteString(html)
}

// SendJSON encodes v into the body and sets a JSON content type.
func (r *Response) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.headers.Set("Content-Type", "application/json")
	r.body.Write(data)
	return nil
}

// OnComplete registers fn to run when the response is completed, before it
// is flushed.
func (r *Response) OnComplete(fn func(*Response)) {
	r.hooks = append(r.hooks, fn)
}

// Completed reports whether Complete has been called.
func (r *Response) Completed() bool {
	return r.completed.Load()
}

// Complete sets the status and hands the response over for flushing. Only
// the first call has an effect; later calls return ErrResponseCompleted.
func (r *Response) Complete(status int) error {
	if !r.completed.CompareAndSwap(false, true) {
		return ErrResponseCompleted
	}
	r.finish(status)
	return nil
}

// claim marks the response completed without flushing it, so that a failed
// handler cannot complete it after the error path took over.
func (r *Response) claim() bool {
	return r.completed.CompareAndSwap(false, true)
}

func (r *Response) finish(status int) {
	r.status = status
	for _, fn := range r.hooks {
		fn(r)
	}
	if r.done != nil {
		r.done(r)
	}
}
