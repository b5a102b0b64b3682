package shared

import (
	"net"
	"sync"
	"time"
)

// Conn is one client-to-broker stream with the framed read and write
// primitives the protocol is built from. Reads are expected from a single
// goroutine; writes may come from many and never interleave frames.
type Conn struct {
	net.Conn

	writeTimeout time.Duration
	mu           sync.Mutex // serializes frame writes
}

// NewConn wraps c. A positive writeTimeout bounds every frame write.
func NewConn(c net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{Conn: c, writeTimeout: writeTimeout}
}

func (c *Conn) ReadString() (string, error) { return ReadString(c.Conn) }

func (c *Conn) ReadLength() (uint64, error) { return ReadLength(c.Conn) }

func (c *Conn) ReadRequest() (Request, error) { return DecodeRequest(c.Conn) }

func (c *Conn) WriteString(s string) error {
	return c.locked(func() error { return WriteString(c.Conn, s) })
}

func (c *Conn) WriteLength(n uint64) error {
	return c.locked(func() error { return WriteLength(c.Conn, n) })
}

func (c *Conn) WriteRequest(req Request) error {
	return c.locked(func() error { return EncodeRequest(c.Conn, req) })
}

// Write forwards raw bytes, used by the relay once the header is sent.
func (c *Conn) Write(p []byte) (int, error) {
	var n int
	err := c.locked(func() error {
		var err error
		n, err = c.Conn.Write(p)
		return err
	})
	return n, err
}

func (c *Conn) locked(write func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.Conn.SetWriteDeadline(time.Time{})
	}
	return write()
}

type closeWriter interface {
	CloseWrite() error
}

// CloseWrite half-closes the stream when the transport supports it.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Shutdown signals end-of-stream to the peer and closes the connection.
func (c *Conn) Shutdown() error {
	c.CloseWrite()
	return c.Conn.Close()
}

// Host returns the remote IP of the connection without the port.
func (c *Conn) Host() string {
	addr := c.Conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
