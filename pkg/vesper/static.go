package vesper

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/FumingPower3925/vesper/internal/form"
)

const fileChunkSize = 32 << 10

var errNoStaticRoot = fmt.Errorf("vesper: no static root configured: %w", fs.ErrNotExist)

// StaticPath maps a request target to a file below root. The query string is
// dropped and the path is cleaned so it cannot leave root.
func StaticPath(root, uri string) string {
	p, _, _ := form.SplitURI(uri)
	return filepath.Join(root, filepath.FromSlash(path.Clean("/"+p)))
}

// ContentType returns the MIME type for the extension of name.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// openFile opens static files; tests swap it to simulate failing reads.
var openFile = os.Open

// openStatic opens name, falling back to index.html for directories.
func openStatic(name string) (*os.File, int64, string, error) {
	f, err := openFile(name)
	if err != nil {
		return nil, 0, "", err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, "", err
	}
	if !info.IsDir() {
		return f, info.Size(), name, nil
	}
	_ = f.Close()

	index := filepath.Join(name, "index.html")
	f, err = openFile(index)
	if err != nil {
		return nil, 0, "", err
	}
	info, err = f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, "", err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, "", &fs.PathError{Op: "open", Path: index, Err: fs.ErrNotExist}
	}
	return f, info.Size(), index, nil
}

// fileStream sends one file in fixed-size chunks. Reads run on the executor
// and the next read is only issued from the previous chunk's write callback,
// once the transport flushed enough of it.
type fileStream struct {
	c    *Conn
	cy   *cycle
	file *os.File
	size int64
	sent int64
	head []byte // pending until the first chunk is read
	buf  []byte

	closeOnce sync.Once
}

// serveFile runs on the executor.
func (c *Conn) serveFile(cy *cycle) {
	if c.cfg.htdocs == "" {
		c.responseError(cy, errNoStaticRoot)
		return
	}

	f, size, name, err := openStatic(StaticPath(c.cfg.htdocs, cy.head.URI))
	if err != nil {
		c.responseError(cy, err)
		return
	}

	headers := [][2]string{
		{"Content-Length", strconv.FormatInt(size, 10)},
		{"Content-Type", ContentType(name)},
	}
	s := &fileStream{
		c:    c,
		cy:   cy,
		file: f,
		size: size,
		head: AppendResponseHead(nil, cy.head, 200, headers, -1),
	}

	if size == 0 {
		s.close()
		c.write(cy, [][]byte{s.head}, func(err error) {
			c.completeResponse(cy, 200, err)
		})
		return
	}

	s.buf = make([]byte, min(size, fileChunkSize))
	s.readNext()
}

func (s *fileStream) readNext() {
	n := min(s.size-s.sent, int64(len(s.buf)))
	chunk := s.buf[:n]
	if _, err := io.ReadFull(s.file, chunk); err != nil {
		s.close()
		if s.head != nil {
			s.c.responseError(s.cy, err)
			return
		}
		s.c.onLoop(func() { s.c.abortCycle(s.cy, err) })
		return
	}
	s.sent += n
	fileBytesSent.Add(float64(n))

	bs := [][]byte{chunk}
	if s.head != nil {
		bs = [][]byte{s.head, chunk}
		s.head = nil
	}
	if !s.c.write(s.cy, bs, s.written) {
		s.close()
	}
}

// written runs on the event loop after a chunk was handed to the transport.
// The next read waits until less than one chunk is still unflushed, so a
// slow reader holds at most two chunks of the file in memory.
func (s *fileStream) written(err error) {
	if err != nil {
		s.close()
		s.c.abortCycle(s.cy, err)
		return
	}
	if s.sent == s.size {
		s.close()
		s.c.completeResponse(s.cy, 200, nil)
		return
	}
	s.c.whenDrained(fileChunkSize, func(err error) {
		if err == nil {
			err = s.c.cfg.executor.Submit(s.readNext)
		}
		if err != nil {
			s.close()
			s.c.abortCycle(s.cy, err)
		}
	})
}

func (s *fileStream) close() {
	s.closeOnce.Do(func() {
		if err := s.file.Close(); err != nil {
			s.c.cfg.logger.Printf("Error closing %s: %v", s.file.Name(), err)
		}
	})
}
