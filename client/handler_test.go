package client

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/shared"
)

type joined struct {
	session *room.Session
	remote  *shared.Conn // the client's end of the broadcast connection
	done    chan struct{}
}

// join registers username and runs its handler.
func join(t *testing.T, r *room.Room, username string) *joined {
	t.Helper()
	broker, remote := tcpPair(t)
	session, err := r.TryRegister(username, "127.0.0.1", 9000, broker)
	if err != nil {
		t.Fatal(err)
	}

	j := &joined{session: session, remote: remote, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		NewHandler(r, session).Run()
	}()
	return j
}

func expect(t *testing.T, c *shared.Conn, want string) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	got, err := c.ReadString()
	if err != nil {
		t.Fatalf("waiting for %q: %v", want, err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func expectSilence(t *testing.T, c *shared.Conn) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	defer c.SetReadDeadline(time.Time{})

	got, err := c.ReadString()
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("got %q, %v; want nothing", got, err)
	}
}

func TestBroadcastReachesEveryoneButSender(t *testing.T) {
	r := room.New()
	a, b, c := join(t, r, "A"), join(t, r, "B"), join(t, r, "C")

	if err := a.remote.WriteString("hello"); err != nil {
		t.Fatal(err)
	}

	expect(t, b.remote, "A: hello")
	expect(t, c.remote, "A: hello")
	expectSilence(t, a.remote)
	expectSilence(t, b.remote)
}

func TestBroadcastPreservesSenderOrder(t *testing.T) {
	r := room.New()
	a, b := join(t, r, "A"), join(t, r, "B")

	for i := 0; i < 100; i++ {
		if err := a.remote.WriteString(fmt.Sprint(i)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 100; i++ {
		expect(t, b.remote, fmt.Sprintf("A: %d", i))
	}
}

func TestBroadcastSurvivesFailedRecipient(t *testing.T) {
	r := room.New()
	a, b := join(t, r, "A"), join(t, r, "B")

	// D is registered but its broker side is already dead, so every write
	// to it fails.
	broken, _ := tcpPair(t)
	if _, err := r.TryRegister("D", "127.0.0.1", 9004, broken); err != nil {
		t.Fatal(err)
	}
	broken.Close()

	c := join(t, r, "C")

	a.remote.WriteString("first")
	expect(t, b.remote, "A: first")
	expect(t, c.remote, "A: first")

	// The sender's handler is unaffected and keeps relaying.
	a.remote.WriteString("second")
	expect(t, b.remote, "A: second")
	expect(t, c.remote, "A: second")
	expectSilence(t, a.remote)
}

func TestOversizedBroadcastIsDropped(t *testing.T) {
	r := room.New()
	a, b, c := join(t, r, "A"), join(t, r, "B"), join(t, r, "C")

	// A full-size frame no longer fits once "A: " is prepended.
	if err := a.remote.WriteString(strings.Repeat("x", shared.MaxStringSize)); err != nil {
		t.Fatal(err)
	}
	a.remote.WriteString("after")

	expect(t, b.remote, "A: after")
	expect(t, c.remote, "A: after")
	if got := r.Usernames(); fmt.Sprint(got) != "[A B C]" {
		t.Errorf("users after oversized message: %v", got)
	}

	// The longest line that still fits is delivered whole.
	longest := strings.Repeat("y", shared.MaxStringSize-len("A: "))
	a.remote.WriteString(longest)
	expect(t, b.remote, "A: "+longest)
	expect(t, c.remote, "A: "+longest)
}

func TestDisconnectUnregisters(t *testing.T) {
	r := room.New()
	a, b := join(t, r, "A"), join(t, r, "B")

	a.remote.Close()
	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not stop after the client left")
	}

	if _, ok := r.LookupOwner("A"); ok {
		t.Error("A still registered")
	}
	if _, ok := r.LookupOwner("B"); !ok {
		t.Error("B removed by A's disconnect")
	}
	if targets := r.SnapshotBroadcastTargets(nil); len(targets) != 1 || targets[0] != b.session.Conn {
		t.Errorf("broadcast set is %v", targets)
	}

	// The name is free again.
	join(t, r, "A")
}

func TestConcurrentDisconnects(t *testing.T) {
	r := room.New()
	var leaving, staying []*joined
	for i := 0; i < 10; i++ {
		leaving = append(leaving, join(t, r, fmt.Sprintf("leave%d", i)))
		staying = append(staying, join(t, r, fmt.Sprintf("stay%d", i)))
	}

	for _, j := range leaving {
		go j.remote.Close()
	}
	for _, j := range leaving {
		select {
		case <-j.done:
		case <-time.After(5 * time.Second):
			t.Fatal("handler did not stop")
		}
	}

	if got := r.Len(); got != len(staying) {
		t.Errorf("Len() = %d, want %d", got, len(staying))
	}
	for _, j := range staying {
		if _, ok := r.LookupOwner(j.session.Username); !ok {
			t.Errorf("%s lost by someone else's disconnect", j.session.Username)
		}
	}
}
