package room

import (
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/imaneimrh/relaychat/shared"
)

// Endpoint is where a client's file listener can be reached.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Session is one joined client. Everything but registry membership is fixed
// once the session is created.
type Session struct {
	ID       string
	Username string
	Endpoint Endpoint
	Conn     *shared.Conn
	JoinedAt time.Time
}

// Room is the registry of live sessions. The username index and the set of
// broadcast connections are only ever changed together under mu.
type Room struct {
	sessions  map[string]*Session
	connected map[*shared.Conn]string
	mu        sync.Mutex
}

func New() *Room {
	return &Room{
		sessions:  make(map[string]*Session),
		connected: make(map[*shared.Conn]string),
	}
}

func (r *Room) TryRegister(username, host string, listenPort int, conn *shared.Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return nil, fmt.Errorf("%w: %q", shared.ErrNameTaken, username)
	}
	if owner, exists := r.connected[conn]; exists {
		panic(fmt.Sprintf("room: connection already bound to %q", owner))
	}

	session := &Session{
		ID:       uuid.NewString(),
		Username: username,
		Endpoint: Endpoint{Host: host, Port: listenPort},
		Conn:     conn,
		JoinedAt: time.Now(),
	}
	r.sessions[username] = session
	r.connected[conn] = username

	log.Printf("User '%s' joined from %s (file listener %s)", username, conn.RemoteAddr(), session.Endpoint)
	return session, nil
}

// Unregister removes username if it is still bound to conn. Calling it for
// a session that is already gone is a no-op.
func (r *Room) Unregister(username string, conn *shared.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[username]
	if !exists || session.Conn != conn {
		return
	}
	if r.connected[conn] != username {
		panic(fmt.Sprintf("room: session %q has no matching broadcast connection", username))
	}

	delete(r.sessions, username)
	delete(r.connected, conn)
	log.Printf("User '%s' left", username)
}

func (r *Room) LookupOwner(username string) (Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[username]
	if !exists {
		return Endpoint{}, false
	}
	return session.Endpoint, true
}

// SnapshotBroadcastTargets returns every live broadcast connection except
// exclude. Callers write to the result without holding the lock.
func (r *Room) SnapshotBroadcastTargets(exclude *shared.Conn) []*shared.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Filter(lo.Keys(r.connected), func(conn *shared.Conn, _ int) bool {
		return conn != exclude
	})
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) != len(r.connected) {
		panic(fmt.Sprintf("room: %d sessions but %d connections", len(r.sessions), len(r.connected)))
	}
	return len(r.sessions)
}

func (r *Room) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := lo.Keys(r.sessions)
	sort.Strings(names)
	return names
}

// CloseAll closes every broadcast connection. The handlers notice the closed
// streams and unregister themselves.
func (r *Room) CloseAll() {
	for _, conn := range r.SnapshotBroadcastTargets(nil) {
		conn.Close()
	}
}
