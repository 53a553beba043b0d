package vesper

import (
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"os"
	"syscall"
)

var (
	// ErrResponseCompleted is returned when a response is completed twice.
	ErrResponseCompleted = errors.New("vesper: response already completed")
	// ErrSessionAlreadySet is returned when a second session is attached to
	// a request.
	ErrSessionAlreadySet = errors.New("vesper: session already set")
	// ErrConnectionClosed is recorded for cycles cut short by the peer.
	ErrConnectionClosed = errors.New("vesper: connection closed")
)

// ErrorHandler maps a failure of a request cycle to the response sent in its
// place. It must always return a response.
type ErrorHandler func(c *Conn, head *RequestHead, err error) *Response

// DefaultErrorHandler answers I/O errors with 404 (not found) or 417 and
// anything else with 500, each wrapped in a small HTML page.
func DefaultErrorHandler(_ *Conn, _ *RequestHead, err error) *Response {
	var (
		content string
		status  int
	)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		content = "<h3>IOError (not found)</h3>"
		status = 404
	case isIOError(err):
		content = "<h3>IOError (other)</h3><h4>" + html.EscapeString(err.Error()) + "</h4>"
		status = 417
	default:
		content = "<h3>" + html.EscapeString(fmt.Sprintf("%T", err)) + " error</h3>"
		status = 500
	}

	resp := NewResponse()
	resp.SendHTML(errorPage(content))
	_ = resp.Complete(status)
	return resp
}

func isIOError(err error) bool {
	var (
		pathErr    *fs.PathError
		syscallErr *os.SyscallError
		linkErr    *os.LinkError
		errno      syscall.Errno
	)
	return errors.As(err, &pathErr) ||
		errors.As(err, &syscallErr) ||
		errors.As(err, &linkErr) ||
		errors.As(err, &errno) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func errorPage(content string) string {
	return `<!DOCTYPE HTML PUBLIC "-//IETF//DTD HTML 2.0//EN">
<html>
<head><title>Vesper</title></head>
<body>
    <h1>Vesper</h1>
    ` + content + `
</body>
</html>
`
}

// PanicError carries the value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("vesper: handler panic: %v", e.Value)
}
