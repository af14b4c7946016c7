package protocol

import "fmt"

// RequestType is the leading byte of every request.
type RequestType byte

// Request types
const (
	AddPeer    RequestType = 'A'
	RemovePeer RequestType = 'R'
	AddFile    RequestType = 'F'
	RemoveFile RequestType = 'f'
)

const (
	// MaxStringSize is the longest string a one-byte length prefix can carry.
	MaxStringSize = 255
	// MaxListSize is the largest entry count a one-byte count prefix can carry.
	MaxListSize = 255
)

// Known reports whether t is one of the four request types.
func (t RequestType) Known() bool {
	switch t {
	case AddPeer, RemovePeer, AddFile, RemoveFile:
		return true
	}
	return false
}

func (t RequestType) String() string {
	switch t {
	case AddPeer:
		return "add-peer"
	case RemovePeer:
		return "remove-peer"
	case AddFile:
		return "add-file"
	case RemoveFile:
		return "remove-file"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// HasFilename reports whether the request body carries a filename after the port.
func (t RequestType) HasFilename() bool {
	return t == AddFile || t == RemoveFile
}

// --- Domain Types ---

// FileEntry is one filename -> owning peer address mapping.
type FileEntry struct {
	Name  string
	Owner string
}

// Snapshot is the registry state sent back to a joining peer.
type Snapshot struct {
	Peers []string
	Files []FileEntry
}

// Request is a decoded request body. Addr is host:port, where host came from
// the transport and port from the wire.
type Request struct {
	Type     RequestType
	Addr     string
	Filename string
}
