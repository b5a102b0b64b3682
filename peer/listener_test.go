package peer

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/imaneimrh/relaychat/shared"
)

func startListener(t *testing.T, files map[string]string) *FileListener {
	t.Helper()
	l := &FileListener{Source: DirSource{Root: shareDir(t, files)}, ChunkSize: 64, Timeout: 5 * time.Second}
	if err := l.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go l.Serve()
	t.Cleanup(func() { l.Close() })
	return l
}

// ask plays the broker's side of one forwarded request.
func ask(t *testing.T, l *FileListener, filename string) (uint64, []byte) {
	t.Helper()
	c, err := net.Dial("tcp", l.listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	conn := shared.NewConn(c, 0)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteString(filename); err != nil {
		t.Fatal(err)
	}
	size, err := conn.ReadLength()
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	return size, body
}

func TestFileListenerServesFile(t *testing.T) {
	content := string(bytes.Repeat([]byte("chunked payload "), 100))
	l := startListener(t, map[string]string{"notes.txt": content})

	if l.Port() == 0 {
		t.Fatal("no port after Listen")
	}
	size, body := ask(t, l, "notes.txt")
	if size != uint64(len(content)) || string(body) != content {
		t.Errorf("got size %d and %d bytes, want %d", size, len(body), len(content))
	}
}

func TestFileListenerAnswersZero(t *testing.T) {
	l := startListener(t, map[string]string{"empty.txt": ""})

	for _, name := range []string{"missing.txt", "empty.txt", "../escape.txt"} {
		size, body := ask(t, l, name)
		if size != 0 || len(body) != 0 {
			t.Errorf("%s: got size %d and %d bytes", name, size, len(body))
		}
	}
}

func TestFileListenerClose(t *testing.T) {
	l := &FileListener{Source: DirSource{Root: t.TempDir()}}
	if err := l.Serve(); err == nil {
		t.Error("Serve before Listen succeeded")
	}
	if err := l.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Serve() }()
	l.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after Close", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
