package vesper

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/panjf2000/gnet/v2"
	"go.opentelemetry.io/otel/trace"
)

// Outbound is the write side of a connection. gnet.Conn implements it. Every
// callback runs on the connection's event loop. OutboundBuffered may only be
// called there; the other methods are safe from any goroutine.
type Outbound interface {
	AsyncWritev(bs [][]byte, callback gnet.AsyncCallback) error
	Wake(callback gnet.AsyncCallback) error
	Close() error
	RemoteAddr() net.Addr
	// OutboundBuffered returns the number of written bytes the transport
	// has not handed to the socket yet.
	OutboundBuffered() int
}

// Executor runs blocking work off the event loop. *ants.Pool implements it.
type Executor interface {
	Submit(task func()) error
}

// connConfig holds the collaborators shared by every connection of a server.
type connConfig struct {
	router       RouteTable
	sessions     SessionStore // nil disables sessions
	errorHandler ErrorHandler
	executor     Executor
	htdocs       string
	cors         bool
	logger       *log.Logger
	tracing      tracing
}

// cycle is the bookkeeping of one request/response exchange.
type cycle struct {
	head  *RequestHead
	kind  string
	start time.Time
	ctx   context.Context
	span  trace.Span
	err   error // handler failure answered by the error handler
	done  bool
}

// Conn drives the request lifecycle of one connection. The transport calls
// its Handler methods on the connection's event loop; every state change
// happens there as well, either directly or from a write callback.
type Conn struct {
	cfg    *connConfig
	out    Outbound
	resume func()

	state     State
	keepAlive bool
	head      *RequestHead
	body      []byte
	closing   bool // waiting for the last response to drain
	gone      bool // the transport closed the connection
	closed    bool
}

func newConn(cfg *connConfig, out Outbound, resume func()) *Conn {
	activeConnections.Inc()
	return &Conn{cfg: cfg, out: out, resume: resume}
}

// State returns the protocol phase of the connection.
func (c *Conn) State() State {
	return c.state
}

// KeepAlive reports whether the connection stays open after the current
// response.
func (c *Conn) KeepAlive() bool {
	return c.keepAlive
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.out.RemoteAddr()
}

// Ready reports whether the next request head may be delivered.
func (c *Conn) Ready() bool {
	return c.state == StateIdle && !c.closing && !c.closed
}

// OnHead starts a request cycle.
func (c *Conn) OnHead(head *RequestHead) {
	must(c.state.RequestReceived())
	c.head = head
	c.keepAlive = head.KeepAlive()
	c.body = nil
}

// OnBodyChunk appends a piece of the request body. chunk is copied.
func (c *Conn) OnBodyChunk(chunk []byte) {
	if c.state != StateAwaitingBody {
		panic(&StateError{Event: "body chunk", From: c.state})
	}
	c.body = append(c.body, chunk...)
}

// OnEnd closes the request and dispatches it: a matching route runs its
// handler, anything else is served from the static root.
func (c *Conn) OnEnd() {
	must(c.state.RequestComplete())
	head, body := c.head, c.body
	c.body = nil

	req := NewRequest(head, body)
	if c.cfg.router != nil {
		if route, params, ok := c.cfg.router.Match(head.Method, req.URL()); ok {
			for k, v := range params {
				req.params.Set(k, Text(v))
			}
			req.clientIP = remoteIP(c.out.RemoteAddr())
			cy := c.begin(head, kindRoute)
			req.ctx = cy.ctx
			c.submit(cy, func() { c.runHandler(cy, route, req) })
			return
		}
	}

	cy := c.begin(head, kindFile)
	c.submit(cy, func() { c.serveFile(cy) })
}

// OnInputClosed handles the peer closing its side. An idle connection, or
// one still reading a body, is closed right away. With a response in flight
// keep-alive is dropped so the connection closes once it is flushed.
func (c *Conn) OnInputClosed() {
	c.gone = true
	switch c.state {
	case StateIdle, StateAwaitingBody:
		c.close()
	case StateSendingResponse:
		c.keepAlive = false
	}
}

func (c *Conn) begin(head *RequestHead, kind string) *cycle {
	ctx, span := c.cfg.tracing.start(head, kind)
	requestsInFlight.Inc()
	return &cycle{head: head, kind: kind, start: time.Now(), ctx: ctx, span: span}
}

func (c *Conn) finishCycle(cy *cycle, status int, err error) {
	if cy.done {
		return
	}
	cy.done = true
	if err == nil {
		err = cy.err
	}
	requestsInFlight.Dec()
	endSpan(cy.span, status, err)
	observeCycle(cy.kind, status, cy.start)
}

func (c *Conn) submit(cy *cycle, task func()) {
	if err := c.cfg.executor.Submit(task); err != nil {
		c.cfg.logger.Printf("Error submitting %s %s: %v", cy.head.Method, cy.head.URI, err)
		c.responseError(cy, err)
	}
}

func (c *Conn) runHandler(cy *cycle, route *Route, req *Request) {
	resp := newResponse(func(r *Response) { c.processResponse(cy, r) })
	defer func() {
		if p := recover(); p != nil {
			c.cfg.logger.Printf("Recovered panic in %s %s: %v", req.Method(), req.URI(), p)
			c.fail(cy, resp, &PanicError{Value: p})
		}
	}()

	if c.cfg.sessions != nil && !attachSession(c.cfg.sessions, req, resp, route.Filter) {
		_ = resp.Complete(401)
		return
	}
	if c.cfg.cors {
		addCORSHeaders(resp)
	}
	req.Parse()
	if err := route.Handler(req, resp); err != nil {
		c.fail(cy, resp, err)
	}
}

// fail answers a failed handler through the error handler unless the
// handler already completed its response.
func (c *Conn) fail(cy *cycle, resp *Response, err error) {
	if !resp.claim() {
		c.cfg.logger.Printf("Handler error after completion of %s %s: %v", cy.head.Method, cy.head.URI, err)
		return
	}
	cy.err = err
	c.responseError(cy, err)
}

func (c *Conn) close() {
	if c.closed {
		return
	}
	c.closed = true
	activeConnections.Dec()
	_ = c.out.Close()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
