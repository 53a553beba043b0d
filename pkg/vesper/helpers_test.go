package vesper

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/FumingPower3925/vesper/internal/h1"
	"github.com/panjf2000/gnet/v2"
)

// fakeOutbound records writes and runs callbacks synchronously. While
// stalled, written bytes count as unflushed until flush is called, the way
// gnet keeps bytes the socket did not take in its outbound buffer.
type fakeOutbound struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	writeErr error
	queueErr error // returned by AsyncWritev without running the callback
	stalled  bool
	buffered int
	wakes    int
}

func (f *fakeOutbound) AsyncWritev(bs [][]byte, callback gnet.AsyncCallback) error {
	var frame []byte
	for _, b := range bs {
		frame = append(frame, b...)
	}
	f.mu.Lock()
	if f.queueErr != nil {
		f.mu.Unlock()
		return f.queueErr
	}
	f.frames = append(f.frames, frame)
	if f.stalled {
		f.buffered += len(frame)
	}
	err := f.writeErr
	f.mu.Unlock()
	if callback != nil {
		return callback(nil, err)
	}
	return nil
}

func (f *fakeOutbound) Wake(callback gnet.AsyncCallback) error {
	f.mu.Lock()
	f.wakes++
	f.mu.Unlock()
	if callback != nil {
		return callback(nil, nil)
	}
	return nil
}

func (f *fakeOutbound) OutboundBuffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

// flush pretends the socket took every pending byte. stalled stays as set.
func (f *fakeOutbound) flush(stalled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffered = 0
	f.stalled = stalled
}

func (f *fakeOutbound) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutbound) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (f *fakeOutbound) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeOutbound) bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Join(f.frames, nil)
}

func (f *fakeOutbound) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// responses parses every response written so far.
func (f *fakeOutbound) responses(t *testing.T) []*http.Response {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(f.bytes()))
	var out []*http.Response
	for {
		if _, err := r.Peek(1); err != nil {
			return out
		}
		resp, err := http.ReadResponse(r, nil)
		if err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Failed to read response body: %v", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		out = append(out, resp)
	}
}

func (f *fakeOutbound) response(t *testing.T) (*http.Response, string) {
	t.Helper()
	resps := f.responses(t)
	if len(resps) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(resps))
	}
	body, _ := io.ReadAll(resps[0].Body)
	return resps[0], string(body)
}

// inlineExecutor runs tasks on the calling goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) error {
	task()
	return nil
}

// queueExecutor holds tasks until run is called.
type queueExecutor struct {
	tasks []func()
}

func (q *queueExecutor) Submit(task func()) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueExecutor) run() {
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		task()
	}
}

type fakeSession struct {
	id    string
	token string
}

func (s *fakeSession) ID() string    { return s.id }
func (s *fakeSession) Token() string { return s.token }

// fakeSessionStore knows a single authenticated session.
type fakeSessionStore struct {
	known   *fakeSession
	created int
}

func (s *fakeSessionStore) Lookup(authorization, cookies string) (Session, bool) {
	if s.known != nil && (authorization == "Bearer "+s.known.token || bytes.Contains([]byte(cookies), []byte("sessionId="+s.known.id))) {
		return s.known, true
	}
	return nil, false
}

func (s *fakeSessionStore) New() Session {
	s.created++
	return &fakeSession{id: "new-session"}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestServer(t *testing.T, config Config, opts Options) *Server {
	t.Helper()
	if config.Logger == nil {
		config.Logger = testLogger()
	}
	if opts.Executor == nil {
		opts.Executor = inlineExecutor{}
	}
	return New(config, opts)
}

// newTestConn wires a Conn to a transport connection so tests can feed raw
// request bytes.
func newTestConn(s *Server) (*h1.Connection, *Conn, *fakeOutbound) {
	out := &fakeOutbound{}
	tc := h1.NewConnection(nil, testLogger(), 0)
	c := s.NewConn(out, tc.Resume)
	tc.SetHandler(c)
	return tc, c, out
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testHead(method, uri string, minor int, headers ...[2]string) *RequestHead {
	return &RequestHead{Method: method, URI: uri, Major: 1, Minor: minor, Headers: headers}
}
