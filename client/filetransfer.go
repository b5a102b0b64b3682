package client

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/shared"
)

const DefaultChunkSize = 1500

type ProxyConfig struct {
	ChunkSize   int
	DialTimeout time.Duration
	// IdleTimeout bounds every single read from the owner and write to the
	// requester. Zero waits forever.
	IdleTimeout time.Duration
}

// Proxy relays file requests to the owning client's file listener.
type Proxy struct {
	Room   *room.Room
	Config ProxyConfig
}

func NewProxy(r *room.Room, cfg ProxyConfig) *Proxy {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Proxy{Room: r, Config: cfg}
}

// TransferResult describes one relay after it has ended.
type TransferResult struct {
	ID       string
	Owner    string
	Filename string
	Size     uint64
	Relayed  uint64
	Digest   string // hex BLAKE2b-256 of the relayed bytes
	Err      error
}

type transfer struct {
	*TransferResult
	requester *shared.Conn
	owner     net.Conn
	digest    hash.Hash
	cfg       ProxyConfig
}

// Relay serves one FileTransfer request on requester and always shuts the
// requester down before returning. Failures before the header is forwarded
// reach the requester as a zero length.
func (p *Proxy) Relay(requester *shared.Conn, req shared.FileTransfer) *TransferResult {
	digest, _ := blake2b.New256(nil)
	t := &transfer{
		TransferResult: &TransferResult{
			ID:       uuid.NewString(),
			Owner:    req.Owner,
			Filename: req.Filename,
		},
		requester: requester,
		digest:    digest,
		cfg:       p.Config,
	}

	defer requester.Shutdown()

	t.Err = t.run(p.Room)
	t.Digest = hex.EncodeToString(t.digest.Sum(nil))

	if t.Err != nil {
		log.Printf("Transfer %s of %s from %s failed after %d/%d bytes: %v",
			t.ID, t.Filename, t.Owner, t.Relayed, t.Size, t.Err)
	} else {
		log.Printf("Transfer %s of %s from %s complete: %d bytes, blake2b %s",
			t.ID, t.Filename, t.Owner, t.Relayed, t.Digest)
	}
	return t.TransferResult
}

func (t *transfer) run(r *room.Room) error {
	endpoint, ok := r.LookupOwner(t.Owner)
	if !ok {
		return t.reject(fmt.Errorf("%w: %q is not connected", shared.ErrPeerUnreachable, t.Owner))
	}

	owner, err := net.DialTimeout("tcp", endpoint.String(), t.cfg.DialTimeout)
	if err != nil {
		return t.reject(fmt.Errorf("%w: %v", shared.ErrPeerUnreachable, err))
	}
	t.owner = owner
	defer owner.Close()

	t.touch(owner.SetDeadline)
	if err := shared.WriteString(owner, t.Filename); err != nil {
		return t.reject(fmt.Errorf("%w: %v", shared.ErrPeerUnreachable, err))
	}
	size, err := shared.ReadLength(owner)
	if err != nil {
		return t.reject(fmt.Errorf("%w: reading length: %v", shared.ErrPeerUnreachable, err))
	}

	t.Size = size
	t.touch(t.requester.SetWriteDeadline)
	if err := shared.WriteLength(t.requester.Conn, size); err != nil {
		return fmt.Errorf("%w: forwarding length: %v", shared.ErrMidTransfer, err)
	}
	if size == 0 {
		return shared.ErrFileUnavailable
	}

	return t.relay()
}

// reject answers the requester with the zero length sentinel.
func (t *transfer) reject(cause error) error {
	t.touch(t.requester.SetWriteDeadline)
	if err := shared.WriteLength(t.requester.Conn, 0); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (t *transfer) relay() error {
	buf := make([]byte, t.cfg.ChunkSize)
	for t.Relayed < t.Size {
		chunk := buf
		if remaining := t.Size - t.Relayed; remaining < uint64(len(chunk)) {
			chunk = chunk[:remaining]
		}

		t.touch(t.owner.SetReadDeadline)
		n, err := t.owner.Read(chunk)
		if n > 0 {
			t.touch(t.requester.SetWriteDeadline)
			if _, werr := t.requester.Conn.Write(chunk[:n]); werr != nil {
				return fmt.Errorf("%w: writing to requester: %v", shared.ErrMidTransfer, werr)
			}
			t.digest.Write(chunk[:n])
			t.Relayed += uint64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading from owner: %v", shared.ErrMidTransfer, err)
		}
	}

	if t.Relayed < t.Size {
		return fmt.Errorf("%w: owner closed after %d of %d bytes", shared.ErrMidTransfer, t.Relayed, t.Size)
	}
	return nil
}

// touch pushes a deadline setter IdleTimeout into the future.
func (t *transfer) touch(set func(time.Time) error) {
	if t.cfg.IdleTimeout > 0 {
		set(time.Now().Add(t.cfg.IdleTimeout))
	}
}
