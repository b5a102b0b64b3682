package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/imaneimrh/relaychat/client"
	"github.com/imaneimrh/relaychat/config"
	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/shared"
)

type Server struct {
	Addr   string
	Room   *room.Room
	Proxy  *client.Proxy
	Config config.Config

	listener net.Listener
	mu       sync.Mutex
}

func NewServer(cfg config.Config, r *room.Room) *Server {
	return &Server{
		Addr:   cfg.ListenAddr,
		Room:   r,
		Config: cfg,
		Proxy: client.NewProxy(r, client.ProxyConfig{
			ChunkSize:   cfg.ChunkSize,
			DialTimeout: time.Duration(cfg.DialTimeout),
			IdleTimeout: time.Duration(cfg.RelayIdleTimeout),
		}),
	}
}

// Start binds the listening socket and serves until ctx is done. A bind
// failure is the only error that stops the broker.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return s.Serve(listener)
}

// Serve accepts connections on listener until it is closed.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Server started on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Error accepting connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting and drops every joined client.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	s.Room.CloseAll()
}

func (s *Server) handleConnection(netConn net.Conn) {
	conn := shared.NewConn(netConn, time.Duration(s.Config.WriteTimeout))

	if timeout := time.Duration(s.Config.HandshakeTimeout); timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	req, err := conn.ReadRequest()
	if err != nil {
		log.Printf("Bad request from %s ignored: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	switch req := req.(type) {
	case shared.Join:
		s.join(conn, req)
	case shared.FileTransfer:
		s.Proxy.Relay(conn, req)
	default:
		log.Printf("Unhandled request type %s from %s", req.Type(), conn.RemoteAddr())
		conn.Close()
	}
}

func (s *Server) join(conn *shared.Conn, req shared.Join) {
	session, err := s.Room.TryRegister(req.Username, conn.Host(), req.ListenPort, conn)
	if err != nil {
		log.Printf("Rejected join from %s: %v", conn.RemoteAddr(), err)
		if err := conn.WriteString(client.FormatRejection(req.Username)); err != nil {
			log.Printf("Error sending rejection to %s: %v", conn.RemoteAddr(), err)
		}
		conn.Shutdown()
		return
	}

	client.NewHandler(s.Room, session).Run()
}
