package vesper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FumingPower3925/vesper/internal/date"
	"github.com/FumingPower3925/vesper/internal/h1"
	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet/v2"
)

// Server serves HTTP/1.x connections with the vesper request lifecycle.
type Server struct {
	config    Config
	conns     *connConfig
	pool      *ants.Pool // owned pool, nil when an Executor was supplied
	transport *h1.Server
	stopDate  func()
}

// New creates a new Server. It panics on an invalid configuration.
func New(config Config, opts Options) *Server {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	if config.Sessions && opts.Sessions == nil {
		panic(errors.New("vesper: sessions enabled without a SessionStore"))
	}

	s := &Server{config: config}

	if opts.Router == nil {
		opts.Router = NewRouter()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = DefaultErrorHandler
	}
	if opts.Executor == nil {
		pool, err := ants.NewPool(config.WorkerPoolSize,
			ants.WithLogger(config.Logger),
			ants.WithPanicHandler(func(p any) {
				config.Logger.Printf("Worker panic: %v", p)
			}),
		)
		if err != nil {
			panic(fmt.Errorf("vesper: worker pool: %w", err))
		}
		s.pool = pool
		opts.Executor = pool
	}

	var sessions SessionStore
	if config.Sessions {
		sessions = opts.Sessions
	}

	s.conns = &connConfig{
		router:       opts.Router,
		sessions:     sessions,
		errorHandler: opts.ErrorHandler,
		executor:     opts.Executor,
		htdocs:       config.HtdocsPath,
		cors:         config.CORS,
		logger:       config.Logger,
		tracing:      newTracing(config.Tracing),
	}
	return s
}

// NewWithDefaults creates a new Server with default configuration.
func NewWithDefaults() *Server {
	return New(DefaultConfig(), Options{})
}

// Config returns the normalized configuration.
func (s *Server) Config() Config {
	return s.config
}

// NewConn creates the lifecycle handler of one connection writing to out.
// resume is called on the event loop when the connection is ready for the
// next request.
func (s *Server) NewConn(out Outbound, resume func()) *Conn {
	return newConn(s.conns, out, resume)
}

// Start begins accepting connections. It returns once the listener is up.
func (s *Server) Start() error {
	if s.transport != nil {
		return errors.New("vesper: server already started")
	}

	s.stopDate = date.Start()
	s.transport = h1.NewServer(func(c gnet.Conn, resume func()) h1.Handler {
		return s.NewConn(c, resume)
	}, h1.Config{
		Addr:           s.config.Addr,
		Multicore:      s.config.Multicore,
		NumEventLoop:   s.config.NumEventLoop,
		ReusePort:      s.config.ReusePort,
		Logger:         s.config.Logger,
		MaxConnections: s.config.MaxConnections,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		OnReject:       rejectedConnections.Inc,
	})

	if err := s.transport.Start(); err != nil {
		s.stopDate()
		s.transport = nil
		return err
	}
	return nil
}

// Stop shuts the listener down and releases the worker pool.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.transport != nil {
		err = s.transport.Stop(ctx)
		s.stopDate()
	}
	if s.pool != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if perr := s.pool.ReleaseTimeout(timeout); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() uint32 {
	if s.transport == nil {
		return 0
	}
	return s.transport.ActiveConnections()
}
