package vesper

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func runMiddleware(t *testing.T, mw Middleware, head *RequestHead, h HandlerFunc) (*Request, *Response, error) {
	t.Helper()
	req := NewRequest(head, nil)
	req.clientIP = "10.0.0.1"
	resp := NewResponse()
	err := mw(h)(req, resp)
	return req, resp, err
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	mw := LoggerWithConfig(LoggerConfig{Output: &buf})

	_, _, err := runMiddleware(t, mw, testHead("GET", "/items?x=1", 1), func(_ *Request, resp *Response) error {
		return resp.Complete(201)
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "GET /items 201") {
		t.Errorf("Unexpected log line %q", line)
	}
}

func TestLogger_JSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	mw := Chain(LoggerWithConfig(LoggerConfig{Output: &buf, Format: "json"}), RequestID())

	head := testHead("GET", "/x", 1, [2]string{"X-Request-ID", "abc"})
	_, _, _ = runMiddleware(t, mw, head, func(_ *Request, resp *Response) error {
		return resp.Complete(200)
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "abc" {
		t.Errorf("Expected request_id abc, got %v", entry["request_id"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("Expected status 200, got %v", entry["status"])
	}
	if entry["remote_ip"] != "10.0.0.1" {
		t.Errorf("Expected remote_ip, got %v", entry["remote_ip"])
	}
}

func TestLogger_SkipPaths(t *testing.T) {
	var buf bytes.Buffer
	mw := LoggerWithConfig(LoggerConfig{Output: &buf, SkipPaths: []string{"/health"}})

	_, _, _ = runMiddleware(t, mw, testHead("GET", "/health", 1), func(_ *Request, resp *Response) error {
		return resp.Complete(200)
	})
	if buf.Len() != 0 {
		t.Errorf("Expected no log output, got %q", buf.String())
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	mw := LoggerWithConfig(LoggerConfig{Output: &buf})

	_, _, err := runMiddleware(t, mw, testHead("GET", "/x", 1), func(_ *Request, _ *Response) error {
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("Expected handler error to pass through")
	}
	if !strings.Contains(buf.String(), `error="nope"`) {
		t.Errorf("Expected error in log, got %q", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	_, resp, err := runMiddleware(t, Recovery(), testHead("GET", "/", 1), func(_ *Request, _ *Response) error {
		panic("boom")
	})
	if err != nil {
		t.Errorf("Expected recovered panic to complete the response, got %v", err)
	}
	if resp.Status() != 500 || string(resp.Body()) != "Internal Server Error" {
		t.Errorf("Expected 500 response, got %d %q", resp.Status(), resp.Body())
	}
}

func TestRecovery_AfterComplete(t *testing.T) {
	_, _, err := runMiddleware(t, Recovery(), testHead("GET", "/", 1), func(_ *Request, resp *Response) error {
		_ = resp.Complete(200)
		panic("late")
	})
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Errorf("Expected *PanicError, got %v", err)
	}
}

func TestRequestID(t *testing.T) {
	req, resp, _ := runMiddleware(t, RequestID(), testHead("GET", "/", 1), func(_ *Request, resp *Response) error {
		return resp.Complete(200)
	})

	id, ok := req.Get("request-id")
	if !ok {
		t.Fatal("Expected request id to be stored")
	}
	if len(id.(string)) != 36 {
		t.Errorf("Expected UUID request id, got %v", id)
	}
	if resp.Headers().Get("X-Request-ID") != id {
		t.Errorf("Expected id echoed in response, got %q", resp.Headers().Get("X-Request-ID"))
	}
}
