package peer

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/imaneimrh/relaychat/shared"
)

// FileListener answers file requests the broker forwards to this client.
// Each connection carries one bare filename; the answer is an 8-byte length
// and that many bytes, or a zero length when the file cannot be served.
type FileListener struct {
	Source    FileSource
	ChunkSize int
	// Timeout bounds a whole request. Zero waits forever.
	Timeout time.Duration

	listener net.Listener
	mu       sync.Mutex
}

// Listen binds addr, e.g. ":9001" or "127.0.0.1:0".
func (l *FileListener) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.listener = listener
	l.mu.Unlock()
	return nil
}

// Port is the bound port to announce in the join request.
func (l *FileListener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		return 0
	}
	return l.listener.Addr().(*net.TCPAddr).Port
}

// Serve handles requests until Close.
func (l *FileListener) Serve() error {
	l.mu.Lock()
	listener := l.listener
	l.mu.Unlock()
	if listener == nil {
		return errors.New("file listener is not bound")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Error accepting file request: %v", err)
			continue
		}
		go l.handle(conn)
	}
}

func (l *FileListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}

func (l *FileListener) handle(netConn net.Conn) {
	conn := shared.NewConn(netConn, 0)
	defer conn.Shutdown()

	if l.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(l.Timeout))
	}

	filename, err := conn.ReadString()
	if err != nil {
		log.Printf("Error reading file request: %v", err)
		return
	}

	size, body, err := l.Source.Open(filename)
	if err != nil {
		log.Printf("Cannot serve %s: %v", filename, err)
		conn.WriteLength(0)
		return
	}
	defer body.Close()

	if err := conn.WriteLength(size); err != nil || size == 0 {
		return
	}

	chunkSize := l.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	n, err := io.CopyBuffer(onlyWriter{conn}, io.LimitReader(body, int64(size)), make([]byte, chunkSize))
	if err != nil {
		log.Printf("Sending %s stopped after %d of %d bytes: %v", filename, n, size, err)
		return
	}
	log.Printf("Sent %s (%d bytes)", filename, n)
}

// onlyWriter hides ReadFrom so CopyBuffer really writes in chunks.
type onlyWriter struct {
	io.Writer
}
