package client

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/shared"
)

// Handler serves the broadcast connection of one joined client until that
// client goes away.
type Handler struct {
	Room    *room.Room
	Session *room.Session
}

func NewHandler(r *room.Room, session *room.Session) *Handler {
	return &Handler{Room: r, Session: session}
}

// Run reads messages from the client and fans each one out to every other
// client. It returns once the client's stream fails, after removing the
// session from the room.
func (h *Handler) Run() {
	conn := h.Session.Conn
	username := h.Session.Username

	defer func() {
		h.Room.Unregister(username, conn)
		conn.Close()
	}()

	for {
		content, err := conn.ReadString()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Error reading from client %s: %v", username, err)
			}
			return
		}

		message := FormatBroadcast(username, content)
		if len(message) > shared.MaxStringSize {
			log.Printf("Dropped message from %s: %d bytes with the sender prefix exceeds the frame limit",
				username, len(message))
			continue
		}
		h.broadcast(message)
	}
}

func (h *Handler) broadcast(message string) {
	for _, recipient := range h.Room.SnapshotBroadcastTargets(h.Session.Conn) {
		if err := recipient.WriteString(message); err != nil {
			// A failed write may have left half a frame on the wire; the
			// recipient's own handler unregisters it once the close lands.
			log.Printf("Error writing to client %s: %v", recipient.RemoteAddr(), err)
			recipient.Close()
		}
	}
}
