package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"path/filepath"

	"github.com/imaneimrh/relaychat/shared"
)

// RequestFile asks the broker at addr for filename owned by owner and copies
// the relayed bytes to dst. A zero length answer, which covers both a
// missing file and a missing owner, yields shared.ErrFileUnavailable.
func RequestFile(ctx context.Context, addr, owner, filename string, dst io.Writer) (int64, error) {
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	conn := shared.NewConn(netConn, 0)
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := conn.WriteRequest(shared.FileTransfer{Owner: owner, Filename: filename}); err != nil {
		return 0, fmt.Errorf("sending file request: %w", err)
	}
	size, err := conn.ReadLength()
	if err != nil {
		return 0, fmt.Errorf("reading file length: %w", err)
	}
	if size == 0 {
		return 0, shared.ErrFileUnavailable
	}
	if size > math.MaxInt64 {
		return 0, fmt.Errorf("%w: announced length %d is out of range", shared.ErrMidTransfer, size)
	}
	if a, ok := dst.(allocator); ok {
		if err := a.Allocate(int64(size)); err != nil {
			return 0, err
		}
	}

	n, err := io.CopyN(dst, conn, int64(size))
	if errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: got %d of %d bytes", shared.ErrMidTransfer, n, size)
	}
	return n, err
}

// allocator is implemented by destinations that can reserve space once the
// size of the file is known.
type allocator interface {
	Allocate(size int64) error
}

// Download stores the requested file in dir under its base name and returns
// the path written. Nothing is left behind when the transfer fails.
func Download(ctx context.Context, addr, owner, filename, dir string) (string, int64, error) {
	path := filepath.Join(dir, filepath.Base(filename))
	w := &downloadFile{path: path}

	n, err := RequestFile(ctx, addr, owner, filename, w)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if w.file != nil {
			os.Remove(path)
		}
		return "", n, err
	}
	return path, n, nil
}

// downloadFile creates its file only once the broker announced a size, so a
// rejected request leaves no empty file behind.
type downloadFile struct {
	path string
	file *os.File
}

func (d *downloadFile) Allocate(size int64) error {
	file, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	d.file = file
	return fallocate(file, size)
}

func (d *downloadFile) Write(p []byte) (int, error) {
	if d.file == nil {
		return 0, errors.New("download: write before allocate")
	}
	return d.file.Write(p)
}

func (d *downloadFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
