package shared

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// MaxStringSize is the largest string a 2-byte length prefix can carry.
	MaxStringSize = 1<<16 - 1
	maxPort       = 1<<16 - 1
)

// appendString appends s as a 2-byte big-endian length followed by its bytes.
func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > MaxStringSize {
		return buf, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func WriteString(w io.Writer, s string) error {
	frame, err := appendString(make([]byte, 0, 2+len(s)), s)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

func ReadString(r io.Reader) (string, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}

	body := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return "", unexpected(err)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: invalid utf-8 string", ErrMalformedRequest)
	}
	return string(body), nil
}

// WriteLength writes the 8-byte transfer header. Zero means the file could
// not be delivered.
func WriteLength(w io.Writer, n uint64) error {
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], n)
	_, err := w.Write(header[:])
	return err
}

func ReadLength(r io.Reader) (uint64, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(header[:]), nil
}

// EncodeRequest writes req as a single envelope.
func EncodeRequest(w io.Writer, req Request) error {
	buf := []byte{byte(req.Type())}
	var err error

	switch req := req.(type) {
	case Join:
		if buf, err = appendString(buf, req.Username); err != nil {
			return err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(req.ListenPort))
	case FileTransfer:
		if buf, err = appendString(buf, req.Owner); err != nil {
			return err
		}
		if buf, err = appendString(buf, req.Filename); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot encode request of type %T", req)
	}

	_, err = w.Write(buf)
	return err
}

// DecodeRequest reads one envelope. Anything that is not a well formed Join
// or FileTransfer yields an error wrapping ErrMalformedRequest.
func DecodeRequest(r io.Reader) (Request, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}

	switch RequestType(tag[0]) {
	case JoinRequest:
		username, err := ReadString(r)
		if err != nil {
			return nil, unexpected(err)
		}
		var port [4]byte
		if _, err := io.ReadFull(r, port[:]); err != nil {
			return nil, unexpected(err)
		}
		req := Join{Username: username, ListenPort: int(int32(binary.BigEndian.Uint32(port[:])))}
		if err := req.validate(); err != nil {
			return nil, err
		}
		return req, nil

	case FileRequest:
		owner, err := ReadString(r)
		if err != nil {
			return nil, unexpected(err)
		}
		filename, err := ReadString(r)
		if err != nil {
			return nil, unexpected(err)
		}
		req := FileTransfer{Owner: owner, Filename: filename}
		if err := req.validate(); err != nil {
			return nil, err
		}
		return req, nil

	default:
		return nil, fmt.Errorf("%w: unknown discriminator %d", ErrMalformedRequest, tag[0])
	}
}

func (j Join) validate() error {
	if j.Username == "" {
		return fmt.Errorf("%w: empty username", ErrMalformedRequest)
	}
	if j.ListenPort < 1 || j.ListenPort > maxPort {
		return fmt.Errorf("%w: listen port %d out of range", ErrMalformedRequest, j.ListenPort)
	}
	return nil
}

func (f FileTransfer) validate() error {
	if f.Owner == "" {
		return fmt.Errorf("%w: empty file owner", ErrMalformedRequest)
	}
	if f.Filename == "" {
		return fmt.Errorf("%w: empty filename", ErrMalformedRequest)
	}
	return nil
}

// unexpected turns a clean EOF in the middle of a frame into
// io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
