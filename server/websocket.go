package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/imaneimrh/relaychat/shared"
)

const WebSocketPath = "/ws"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Clients are not browsers tied to an origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and handles the resulting stream exactly
// like an accepted TCP connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	s.handleConnection(shared.NewWebSocketConn(ws))
}

// WebSocketHandler mounts the broker on WebSocketPath.
func (s *Server) WebSocketHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, s)
	return mux
}
