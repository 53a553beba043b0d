// Package vesper is an HTTP/1.1 application server core on top of gnet
// event loops. It drives the per-connection request lifecycle, decodes
// query, urlencoded and multipart parameters, dispatches routes to handlers
// on a worker pool and streams static files in bounded chunks.
package vesper

import (
	"errors"
	"io"
	"log"
)

// Config holds the server configuration options.
type Config struct {
	Addr           string      // Server address to bind to
	Multicore      bool        // Enable multicore mode for better performance
	NumEventLoop   int         // Number of event loops (0 for auto-detect)
	ReusePort      bool        // Enable SO_REUSEPORT for load balancing
	MaxConnections uint32      // Maximum open connections (0 for unlimited)
	MaxHeaderBytes int         // Maximum request head size in bytes
	WorkerPoolSize int         // Goroutines running handlers and file reads
	HtdocsPath     string      // Static file root ("" disables static files)
	CORS           bool        // Add CORS headers to route responses
	Sessions       bool        // Attach sessions to route requests
	Logger         *log.Logger // Logger for server events
	Tracing        TracingConfig
}

// newSilentLogger creates a silent logger that discards all output
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Multicore:      true,
		NumEventLoop:   0, // Auto-detect
		ReusePort:      true,
		MaxHeaderBytes: 1 << 20, // 1 MB
		WorkerPoolSize: 1024,
		HtdocsPath:     "./htdocs",
		Logger:         newSilentLogger(),
		Tracing:        DefaultTracingConfig(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.NumEventLoop < 0 {
		return errors.New("vesper: NumEventLoop must not be negative")
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 1 << 20
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 1024
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return nil
}

// Options carries the collaborators of a server. Zero fields get defaults:
// an empty Router, DefaultErrorHandler and an ants pool of WorkerPoolSize.
type Options struct {
	Router       RouteTable
	Sessions     SessionStore // required when Config.Sessions is set
	ErrorHandler ErrorHandler
	Executor     Executor
}
