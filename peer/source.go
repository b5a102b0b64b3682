package peer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"

	"github.com/imaneimrh/relaychat/shared"
)

// FileSource hands out the files a client is willing to share. Open returns
// the exact number of bytes body will yield. A missing or unreadable file is
// an error; an empty file is a zero size.
type FileSource interface {
	Open(name string) (size uint64, body io.ReadCloser, err error)
}

// DirSource shares the regular files below Root.
type DirSource struct {
	Root string
}

func (d DirSource) Open(name string) (uint64, io.ReadCloser, error) {
	name = filepath.FromSlash(name)
	if !filepath.IsLocal(name) {
		return 0, nil, fmt.Errorf("%w: %q is outside the shared directory", shared.ErrFileUnavailable, name)
	}

	file, err := os.Open(filepath.Join(d.Root, name))
	if err != nil {
		return 0, nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, nil, err
	}
	if !info.Mode().IsRegular() {
		return 0, nil, fmt.Errorf("%w: %q is not a regular file", shared.ErrFileUnavailable, name)
	}
	if info.Size() == 0 {
		return 0, io.NopCloser(bytes.NewReader(nil)), nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return 0, nil, err
	}
	return uint64(len(data)), &mappedFile{Reader: bytes.NewReader(data), data: data}, nil
}

// mappedFile reads a memory mapped file and unmaps it on Close.
type mappedFile struct {
	*bytes.Reader
	data mmap.MMap
}

func (m *mappedFile) Close() error {
	return m.data.Unmap()
}
