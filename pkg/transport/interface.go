package transport

import (
	"io"
	"time"
)

// Conn is one accepted or dialed duplex byte stream. A connection carries a
// single request and is closed once that request is handled.
type Conn interface {
	io.ReadWriteCloser
	// RemoteHost is the remote endpoint's network address without the port.
	RemoteHost() string
	SetDeadline(t time.Time) error
}

// Transport handles the network layer
type Transport interface {
	ListenAndAccept() error
	Dial(addr string) (Conn, error)
	Consume() <-chan Conn
	Close() error
	Addr() string
}
