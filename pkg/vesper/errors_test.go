package vesper

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestDefaultErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		marker string
	}{
		{"not found", &fs.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}, 404, "<h3>IOError (not found)</h3>"},
		{"wrapped not found", fmt.Errorf("serve: %w", fs.ErrNotExist), 404, "IOError (not found)"},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}, 417, "<h3>IOError (other)</h3><h4>open /x: permission denied</h4>"},
		{"errno", syscall.EIO, 417, "IOError (other)"},
		{"syscall error", os.NewSyscallError("read", syscall.EBADF), 417, "IOError (other)"},
		{"short read", io.ErrUnexpectedEOF, 417, "IOError (other)"},
		{"escaped description", &fs.PathError{Op: "open", Path: "<b>", Err: syscall.EPERM}, 417, "&lt;b&gt;"},
		{"generic", errors.New("boom"), 500, "<h3>*errors.errorString error</h3>"},
		{"panic", &PanicError{Value: "x"}, 500, "*vesper.PanicError error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := DefaultErrorHandler(nil, testHead("GET", "/", 1), tt.err)
			if resp.Status() != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.Status())
			}
			body := string(resp.Body())
			if !strings.Contains(body, tt.marker) {
				t.Errorf("Expected %q in body %q", tt.marker, body)
			}
			if !strings.HasPrefix(body, `<!DOCTYPE HTML PUBLIC "-//IETF//DTD HTML 2.0//EN">`) {
				t.Errorf("Expected HTML 2.0 page, got %q", body)
			}
			if !strings.Contains(body, "<title>Vesper</title>") {
				t.Errorf("Expected page title in %q", body)
			}
			if ct := resp.Headers().Get("content-type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Expected HTML content type, got %q", ct)
			}
		})
	}
}

func TestResponse_CompleteOnce(t *testing.T) {
	flushed := 0
	resp := newResponse(func(*Response) { flushed++ })

	if err := resp.Complete(201); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := resp.Complete(500); !errors.Is(err, ErrResponseCompleted) {
		t.Errorf("Expected ErrResponseCompleted, got %v", err)
	}
	if resp.Status() != 201 {
		t.Errorf("Expected status 201, got %d", resp.Status())
	}
	if flushed != 1 {
		t.Errorf("Expected 1 flush, got %d", flushed)
	}
}

func TestResponse_Hooks(t *testing.T) {
	var order []string
	resp := newResponse(func(*Response) { order = append(order, "flush") })
	resp.OnComplete(func(r *Response) { order = append(order, fmt.Sprintf("hook %d", r.Status())) })

	_ = resp.Complete(204)
	if strings.Join(order, ",") != "hook 204,flush" {
		t.Errorf("Unexpected order %v", order)
	}
}

func TestResponse_Senders(t *testing.T) {
	resp := NewResponse()
	resp.SendString("n=%d", 3)
	if string(resp.Body()) != "n=3" {
		t.Errorf("Expected n=3, got %q", resp.Body())
	}

	resp = NewResponse()
	if err := resp.SendJSON(map[string]int{"a": 1}); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}
	if string(resp.Body()) != `{"a":1}` {
		t.Errorf("Unexpected JSON %q", resp.Body())
	}
	if resp.Headers().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got %q", resp.Headers().Get("Content-Type"))
	}
}

func TestHeaders(t *testing.T) {
	var h Headers
	h.Add("Set-Cookie", "a=1")
	h.Add("set-cookie", "b=2")
	h.Add("X-One", "1")

	if h.Get("SET-COOKIE") != "a=1" {
		t.Errorf("Expected first value, got %q", h.Get("SET-COOKIE"))
	}
	h.Set("Set-Cookie", "c=3")
	if h.Len() != 2 || h.Get("set-cookie") != "c=3" {
		t.Errorf("Expected Set to replace every value, got %v", h.All())
	}
	h.Del("x-one")
	if h.Has("X-One") {
		t.Error("Expected X-One to be deleted")
	}
}
