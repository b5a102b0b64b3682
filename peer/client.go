// Package peer is the client side of the broker protocol: joining the chat,
// requesting files through the broker, and serving local files to it.
package peer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imaneimrh/relaychat/shared"
)

// Client is a joined chat session.
type Client struct {
	Username string
	conn     *shared.Conn
}

// Join connects to the broker at addr and registers username with the port
// of the local file listener. A taken username is reported by the broker as
// one message followed by end-of-stream, which Receive surfaces.
func Join(ctx context.Context, addr, username string, listenPort int) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return join(conn, username, listenPort)
}

// JoinWebSocket is Join over the broker's WebSocket ingress, e.g.
// ws://host:8081/ws.
func JoinWebSocket(ctx context.Context, url, username string, listenPort int) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return join(shared.NewWebSocketConn(ws), username, listenPort)
}

func join(netConn net.Conn, username string, listenPort int) (*Client, error) {
	conn := shared.NewConn(netConn, 0)
	if err := conn.WriteRequest(shared.Join{Username: username, ListenPort: listenPort}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending join: %w", err)
	}
	return &Client{Username: username, conn: conn}, nil
}

func (c *Client) Send(message string) error {
	return c.conn.WriteString(message)
}

// Receive blocks for the next line from the broker, already prefixed with
// the sender's name.
func (c *Client) Receive() (string, error) {
	return c.conn.ReadString()
}

// ReceiveTimeout is Receive with a deadline.
func (c *Client) ReceiveTimeout(d time.Duration) (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(d))
	defer c.conn.SetReadDeadline(time.Time{})
	return c.conn.ReadString()
}

// Leave tells the broker we are done sending and closes the session.
func (c *Client) Leave() error {
	return c.conn.Shutdown()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
