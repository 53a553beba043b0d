package h1

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2"
)

// Config configures the gnet engine behind a Server.
type Config struct {
	Addr           string
	Multicore      bool
	NumEventLoop   int // 0 lets gnet pick one loop per CPU
	ReusePort      bool
	Logger         *log.Logger
	MaxConnections uint32 // 0 means unlimited
	MaxHeaderBytes int
	// OnReject is called whenever a connection is refused because of
	// MaxConnections.
	OnReject func()
}

// Server is the gnet event handler that frames HTTP/1.x requests and hands
// them to one Handler per connection.
type Server struct {
	gnet.BuiltinEventEngine

	config     Config
	newHandler HandlerFactory
	open       atomic.Uint32
	engine     gnet.Engine
	booted     chan struct{}
	runErr     chan error
}

// NewServer creates a Server that builds connection handlers with newHandler.
func NewServer(newHandler HandlerFactory, config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &Server{
		config:     config,
		newHandler: newHandler,
		booted:     make(chan struct{}),
		runErr:     make(chan error, 1),
	}
}

func (s *Server) engineOptions() []gnet.Option {
	opts := []gnet.Option{
		gnet.WithMulticore(s.config.Multicore),
		gnet.WithReusePort(s.config.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithTCPKeepAlive(time.Minute),
		gnet.WithLogger(discardLogger{}),
		gnet.WithReadBufferCap(64 << 10),
		gnet.WithWriteBufferCap(64 << 10),
		gnet.WithLoadBalancing(gnet.RoundRobin),
	}
	if s.config.NumEventLoop > 0 {
		opts = append(opts, gnet.WithNumEventLoop(s.config.NumEventLoop))
	}
	return opts
}

// Start runs the engine in the background and blocks until it is listening
// or has failed to boot.
func (s *Server) Start() error {
	go func() {
		s.runErr <- gnet.Run(s, "tcp://"+s.config.Addr, s.engineOptions()...)
	}()

	select {
	case <-s.booted:
		return nil
	case err := <-s.runErr:
		if err == nil {
			err = errors.New("h1: engine exited before boot")
		}
		return err
	}
}

// Stop shuts the engine down. Open connections are closed by gnet and their
// handlers see OnInputClosed.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.booted:
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.engine.Stop(ctx); err != nil {
		s.config.Logger.Printf("h1: stopping engine on %s: %v", s.config.Addr, err)
		return err
	}
	s.config.Logger.Printf("h1: stopped listening on %s", s.config.Addr)
	return nil
}

// ActiveConnections returns the number of admitted, still open connections.
func (s *Server) ActiveConnections() uint32 {
	return s.open.Load()
}

// OnBoot records the engine so Stop can reach it.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.config.Logger.Printf("h1: listening on %s (multicore: %v)", s.config.Addr, s.config.Multicore)
	close(s.booted)
	return gnet.None
}

var serviceUnavailableResponse = []byte("HTTP/1.1 503 Service Unavailable\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 19\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"Service Unavailable")

// admit reserves a connection slot. It fails once MaxConnections are open.
func (s *Server) admit() bool {
	limit := s.config.MaxConnections
	for {
		n := s.open.Load()
		if limit > 0 && n >= limit {
			return false
		}
		if s.open.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// OnOpen admits the connection or answers 503 and closes it.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if !s.admit() {
		s.config.Logger.Printf("h1: refusing %s: %d connections open", c.RemoteAddr(), s.config.MaxConnections)
		if s.config.OnReject != nil {
			s.config.OnReject()
		}
		_ = c.AsyncWrite(serviceUnavailableResponse, func(conn gnet.Conn, _ error) error {
			return conn.Close()
		})
		return nil, gnet.None
	}

	conn := NewConnection(c, s.config.Logger, s.config.MaxHeaderBytes)
	conn.SetHandler(s.newHandler(c, conn.Resume))
	c.SetContext(conn)
	return nil, gnet.None
}

// OnClose releases the slot of an admitted connection and tells its handler
// that no more input will arrive. gnet has no separate read-side shutdown
// event, so a peer half-close surfaces here as well.
func (s *Server) OnClose(c gnet.Conn, _ error) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		return gnet.None
	}
	s.open.Add(^uint32(0))
	c.SetContext(nil)
	conn.InputClosed()
	return gnet.None
}

// OnTraffic feeds inbound bytes to the connection's framing loop.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		// Refused in OnOpen; drop whatever the client sent.
		_, _ = c.Next(-1)
		return gnet.None
	}

	buf, err := c.Next(-1)
	if err != nil {
		s.config.Logger.Printf("h1: reading from %s: %v", c.RemoteAddr(), err)
		return gnet.Close
	}
	if len(buf) == 0 {
		return gnet.None
	}
	if err := conn.HandleData(buf); err != nil {
		s.config.Logger.Printf("h1: rejecting request from %s: %v", c.RemoteAddr(), err)
	}
	return gnet.None
}

// discardLogger silences gnet's own logging.
type discardLogger struct{}

func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}
func (discardLogger) Fatalf(string, ...any) {}
