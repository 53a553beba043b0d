package vesper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// LoggerConfig defines the configuration options for the Logger middleware.
type LoggerConfig struct {
	// Output specifies where logs are written (defaults to os.Stdout)
	Output io.Writer
	// Format specifies the log format: "json" or "text" (default: "text")
	Format string
	// SkipPaths lists paths to skip logging (e.g., health checks)
	SkipPaths []string
}

// DefaultLoggerConfig returns a LoggerConfig with sensible defaults.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Output: os.Stdout,
		Format: "text",
	}
}

// Logger returns a middleware that writes one line per completed request.
func Logger() Middleware {
	return LoggerWithConfig(DefaultLoggerConfig())
}

// LoggerWithConfig returns a Logger middleware with custom configuration.
// The line is written when the response completes, which may be after the
// handler returned.
func LoggerWithConfig(config LoggerConfig) Middleware {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "text"
	}

	skipMap := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(req *Request, resp *Response) error {
			if skipMap[req.URL()] {
				return next(req, resp)
			}

			start := time.Now()
			resp.OnComplete(func(r *Response) {
				entry := map[string]any{
					"time":      start.Format(time.RFC3339),
					"method":    req.Method(),
					"path":      req.URL(),
					"status":    r.Status(),
					"duration":  time.Since(start).Milliseconds(),
					"remote_ip": req.ClientIP(),
				}
				if reqID, ok := req.Get("request-id"); ok {
					entry["request_id"] = reqID
				}

				if config.Format == "json" {
					data, _ := json.Marshal(entry)
					_, _ = fmt.Fprintf(config.Output, "%s\n", data)
					return
				}
				_, _ = fmt.Fprintf(config.Output, "[%s] %s %s %d %dms",
					entry["time"], entry["method"], entry["path"], entry["status"], entry["duration"])
				if reqID, ok := entry["request_id"]; ok {
					_, _ = fmt.Fprintf(config.Output, " req_id=%v", reqID)
				}
				_, _ = fmt.Fprintln(config.Output)
			})

			err := next(req, resp)
			if err != nil {
				_, _ = fmt.Fprintf(config.Output, "[%s] %s %s error=%q\n",
					start.Format(time.RFC3339), req.Method(), req.URL(), err.Error())
			}
			return err
		}
	}
}

// Recovery returns a middleware that answers a panicking handler with a
// plain 500 Internal Server Error instead of the error page.
func Recovery() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(req *Request, resp *Response) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if resp.Completed() {
						err = &PanicError{Value: r}
						return
					}
					resp.SendString("Internal Server Error")
					err = resp.Complete(500)
				}
			}()
			return next(req, resp)
		}
	}
}

// RequestID returns a middleware that tags every request with an id, taken
// from X-Request-ID when the client sent one. The id is stored under
// "request-id" and echoed in the response.
func RequestID() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(req *Request, resp *Response) error {
			requestID := req.Header("x-request-id")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			req.Set("request-id", requestID)
			resp.SetHeader("X-Request-ID", requestID)

			return next(req, resp)
		}
	}
}
