package client

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/shared"
)

// tcpPair returns the broker side and the client side of a loopback TCP
// connection.
func tcpPair(t *testing.T) (*shared.Conn, *shared.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		dialed.Close()
		server.Close()
	})
	return shared.NewConn(server, time.Second), shared.NewConn(dialed, 0)
}

// fakeOwner is a client file listener that answers from a map. Entries in
// short announce more bytes than they send.
type fakeOwner struct {
	ln        net.Listener
	files     map[string][]byte
	short     map[string]uint64
	requested chan string
}

func newFakeOwner(t *testing.T) *fakeOwner {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	o := &fakeOwner{
		ln:        ln,
		files:     make(map[string][]byte),
		short:     make(map[string]uint64),
		requested: make(chan string, 16),
	}
	t.Cleanup(func() { ln.Close() })
	go o.serve()
	return o
}

func (o *fakeOwner) port() int { return o.ln.Addr().(*net.TCPAddr).Port }

func (o *fakeOwner) serve() {
	for {
		c, err := o.ln.Accept()
		if err != nil {
			return
		}
		go func(conn *shared.Conn) {
			defer conn.Shutdown()
			name, err := conn.ReadString()
			if err != nil {
				return
			}
			o.requested <- name

			data := o.files[name]
			size := uint64(len(data))
			if announced, ok := o.short[name]; ok {
				size = announced
			}
			conn.WriteLength(size)
			conn.Write(data)
		}(shared.NewConn(c, 0))
	}
}

// register joins username to r with its file listener on port.
func register(t *testing.T, r *room.Room, username string, port int) *room.Session {
	t.Helper()
	broker, _ := tcpPair(t)
	session, err := r.TryRegister(username, "127.0.0.1", port, broker)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	p, _ := strconv.Atoi(port)
	return p
}
