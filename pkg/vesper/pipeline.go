package vesper

import (
	"fmt"
	"time"

	"github.com/FumingPower3925/vesper/internal/h1"
	"github.com/panjf2000/gnet/v2"
)

// ResponseHeaders returns headers with the Connection header negotiated for
// head: an HTTP/1.0 keep-alive request gets "keep-alive" mirrored, an
// HTTP/1.1 request asking to close gets "close". headers is not modified.
func ResponseHeaders(head *RequestHead, headers [][2]string) [][2]string {
	out := make([][2]string, len(headers), len(headers)+1)
	copy(out, headers)

	keepAlive := head.KeepAlive()
	switch {
	case keepAlive && head.Major == 1 && head.Minor == 0:
		out = append(out, [2]string{"Connection", "keep-alive"})
	case !keepAlive && head.Major == 1 && head.Minor >= 1:
		out = append(out, [2]string{"Connection", "close"})
	}
	return out
}

// AppendResponseHead serializes the response head answering head. A
// Content-Length header with contentLength is added when headers carry none
// and contentLength >= 0.
func AppendResponseHead(buf []byte, head *RequestHead, status int, headers [][2]string, contentLength int) []byte {
	return h1.AppendResponseHead(buf, head.Major, head.Minor, status, ResponseHeaders(head, headers), contentLength)
}

// processResponse flushes a completed response. It may run on any
// goroutine; completion continues on the event loop.
func (c *Conn) processResponse(cy *cycle, resp *Response) {
	body := resp.Body()
	status := resp.Status()
	head := AppendResponseHead(nil, cy.head, status, resp.Headers().All(), len(body))

	bs := [][]byte{head}
	if len(body) > 0 {
		bs = append(bs, body)
	}
	c.write(cy, bs, func(err error) {
		c.completeResponse(cy, status, err)
	})
}

// responseError sends the error handler's answer to err.
func (c *Conn) responseError(cy *cycle, err error) {
	resp := c.cfg.errorHandler(c, cy.head, err)
	if resp == nil {
		resp = DefaultErrorHandler(c, cy.head, err)
	}
	c.processResponse(cy, resp)
}

// completeResponse ends the cycle once the last write was accepted. Without
// keep-alive the connection is closed after the transport flushed every
// byte; a failed write closes it at once; otherwise the transport resumes
// with any pipelined request.
func (c *Conn) completeResponse(cy *cycle, status int, err error) {
	c.finishCycle(cy, status, err)
	must(c.state.ResponseComplete())
	if err != nil {
		c.cfg.logger.Printf("Error writing response to %s %s: %v", cy.head.Method, cy.head.URI, err)
		c.close()
		return
	}
	if !c.keepAlive {
		c.closing = true
		c.whenDrained(1, func(error) { c.close() })
		return
	}
	c.resume()
}

// abortCycle drops a response that can no longer be completed and closes
// the connection. It runs on the event loop.
func (c *Conn) abortCycle(cy *cycle, err error) {
	c.cfg.logger.Printf("Aborting response to %s %s: %v", cy.head.Method, cy.head.URI, err)
	c.finishCycle(cy, 0, err)
	must(c.state.ResponseComplete())
	c.close()
}

// write queues bs and calls done on the event loop once the transport took
// the bytes. Taken is not flushed: whatever the socket did not accept stays
// in the outbound buffer (see whenDrained). When the transport refuses the
// write, done never runs; the cycle is aborted on the loop and write
// reports false.
func (c *Conn) write(cy *cycle, bs [][]byte, done func(error)) bool {
	err := c.out.AsyncWritev(bs, func(_ gnet.Conn, err error) error {
		done(err)
		return nil
	})
	if err != nil {
		c.cfg.logger.Printf("Error queueing response to %s %s: %v", cy.head.Method, cy.head.URI, err)
		c.finishCycle(cy, 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err))
		c.onLoop(func() { c.abortCycle(cy, err) })
		return false
	}
	return true
}

// drainPollInterval is how often a connection waiting for its outbound
// buffer to drain is checked again.
const drainPollInterval = 2 * time.Millisecond

// whenDrained runs fn on the event loop once fewer than below bytes wait in
// the outbound buffer. fn gets ErrConnectionClosed instead when the
// transport closed the connection meanwhile. It must be called on the loop.
func (c *Conn) whenDrained(below int, fn func(error)) {
	if c.gone || c.closed {
		fn(ErrConnectionClosed)
		return
	}
	if c.out.OutboundBuffered() < below {
		fn(nil)
		return
	}
	time.AfterFunc(drainPollInterval, func() {
		c.onLoop(func() { c.whenDrained(below, fn) })
	})
}

// onLoop runs fn on the event loop. When the loop cannot be reached the
// connection is closed from here.
func (c *Conn) onLoop(fn func()) {
	if err := c.out.Wake(func(gnet.Conn, error) error {
		fn()
		return nil
	}); err != nil {
		_ = c.out.Close()
	}
}
