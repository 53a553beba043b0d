package h1

import (
	"bytes"
	"log"

	"github.com/panjf2000/gnet/v2"
)

// Handler receives the request events of one connection. All methods are
// called on the connection's event loop.
type Handler interface {
	// Ready reports whether a new request head may be delivered. While it
	// returns false, inbound bytes stay buffered in the transport.
	Ready() bool
	OnHead(head *Head)
	// OnBodyChunk receives a view into the transport buffer that is only
	// valid for the duration of the call.
	OnBodyChunk(chunk []byte)
	OnEnd()
	// OnInputClosed is called once when the peer stops sending.
	OnInputClosed()
}

// HandlerFactory builds the Handler for a freshly accepted connection.
// resume must be called on the event loop once the handler becomes Ready
// again so that buffered pipelined requests are processed.
type HandlerFactory func(c gnet.Conn, resume func()) Handler

type phase uint8

const (
	phaseHead phase = iota
	phaseBody
	phaseChunked
)

var badRequestResponse = []byte("HTTP/1.1 400 Bad Request\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 11\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"Bad Request")

// Connection frames HTTP/1.x requests out of the byte stream of one gnet
// connection and feeds them to a Handler one at a time.
type Connection struct {
	conn           gnet.Conn
	parser         *Parser
	handler        Handler
	buffer         *bytes.Buffer
	logger         *log.Logger
	maxHeaderBytes int

	phase     phase
	remaining int64
	busy      bool
	failed    bool
}

// NewConnection creates a new HTTP/1.x connection.
func NewConnection(c gnet.Conn, logger *log.Logger, maxHeaderBytes int) *Connection {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = 1 << 20
	}
	return &Connection{
		conn:           c,
		parser:         NewParser(),
		buffer:         new(bytes.Buffer),
		logger:         logger,
		maxHeaderBytes: maxHeaderBytes,
	}
}

// SetHandler installs the request handler.
func (c *Connection) SetHandler(h Handler) {
	c.handler = h
}

// HandleData buffers incoming bytes and delivers every request event that
// can be produced from them.
func (c *Connection) HandleData(data []byte) error {
	if c.failed {
		return nil
	}
	c.buffer.Write(data)
	return c.process()
}

// Resume continues processing buffered bytes after the handler became ready.
func (c *Connection) Resume() {
	if c.busy || c.failed {
		return
	}
	if err := c.process(); err != nil {
		c.logger.Printf("Parse error: %v", err)
	}
}

// InputClosed forwards a peer shutdown to the handler.
func (c *Connection) InputClosed() {
	if c.handler != nil {
		c.handler.OnInputClosed()
	}
}

// process runs the framing loop. Handler callbacks may re-enter Resume; the
// busy flag turns that into a no-op and the loop picks the work up itself.
func (c *Connection) process() error {
	c.busy = true
	defer func() { c.busy = false }()

	for {
		switch c.phase {
		case phaseHead:
			if c.buffer.Len() == 0 || !c.handler.Ready() {
				return nil
			}
			c.parser.Reset(c.buffer.Bytes())
			head, framing, consumed, err := c.parser.ParseHead()
			if err != nil {
				return c.reject(err)
			}
			if consumed == 0 {
				if c.buffer.Len() > c.maxHeaderBytes {
					return c.reject(errHeadTooLarge)
				}
				return nil
			}
			c.buffer.Next(consumed)
			c.handler.OnHead(head)

			switch {
			case framing.Chunked:
				c.phase = phaseChunked
			case framing.ContentLength > 0:
				c.phase = phaseBody
				c.remaining = framing.ContentLength
			default:
				c.handler.OnEnd()
			}

		case phaseBody:
			if c.buffer.Len() == 0 {
				return nil
			}
			n := int64(c.buffer.Len())
			if n > c.remaining {
				n = c.remaining
			}
			c.remaining -= n
			c.handler.OnBodyChunk(c.buffer.Next(int(n)))
			if c.remaining == 0 {
				c.phase = phaseHead
				c.handler.OnEnd()
			}

		case phaseChunked:
			c.parser.Reset(c.buffer.Bytes())
			chunk, consumed, err := c.parser.ParseChunkedBody()
			if err != nil {
				return c.reject(err)
			}
			if consumed == 0 {
				return nil
			}
			if chunk != nil {
				c.handler.OnBodyChunk(chunk)
			}
			c.buffer.Next(consumed)
			if chunk == nil {
				c.phase = phaseHead
				c.handler.OnEnd()
			}
		}
	}
}

// reject answers a malformed request with a canned 400 and closes the
// connection once it is flushed.
func (c *Connection) reject(err error) error {
	c.failed = true
	c.buffer.Reset()
	_ = c.conn.AsyncWrite(badRequestResponse, func(gnet.Conn, error) error {
		return c.conn.Close()
	})
	return err
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}
