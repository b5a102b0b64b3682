//go:build linux

package peer

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// fallocate reserves size bytes for file up front. Filesystems without
// support simply grow the file as it is written.
func fallocate(file *os.File, size int64) error {
	if size == 0 {
		return nil
	}
	err := unix.Fallocate(int(file.Fd()), 0, 0, size)
	if errors.Is(err, unix.EOPNOTSUPP) {
		return nil
	}
	return err
}
