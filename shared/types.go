package shared

import "errors"

type RequestType byte

const (
	JoinRequest RequestType = iota + 1
	FileRequest
)

func (t RequestType) String() string {
	switch t {
	case JoinRequest:
		return "JOIN"
	case FileRequest:
		return "FILE_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Request is the first message on every connection the broker accepts. It
// fixes the role of the connection for its whole lifetime.
type Request interface {
	Type() RequestType
}

// Join asks the broker to register Username for chat. ListenPort is the
// port of the client's file listener.
type Join struct {
	Username   string
	ListenPort int
}

func (Join) Type() RequestType { return JoinRequest }

// FileTransfer asks the broker to fetch Filename from the client registered
// as Owner and relay it back on this connection.
type FileTransfer struct {
	Owner    string
	Filename string
}

func (FileTransfer) Type() RequestType { return FileRequest }

var (
	ErrNameTaken        = errors.New("username already taken")
	ErrMalformedRequest = errors.New("malformed request")
	ErrPeerUnreachable  = errors.New("file owner unreachable")
	ErrFileUnavailable  = errors.New("file not found or empty")
	ErrMidTransfer      = errors.New("transfer interrupted")
	ErrStringTooLong    = errors.New("string exceeds frame limit")
)
