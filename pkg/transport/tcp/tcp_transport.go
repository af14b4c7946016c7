package tcp

import (
	"errors"
	"net"
	"sync"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/transport"
)

// TCPConn implements transport.Conn
type TCPConn struct {
	net.Conn
}

func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{Conn: conn}
}

func (c *TCPConn) RemoteHost() string {
	addr := c.Conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Dial opens an outbound connection. A zero timeout blocks until the OS gives up.
func Dial(addr string, timeout time.Duration) (*TCPConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn), nil
}

// TCPTransport implements transport.Transport
type TCPTransport struct {
	listenAddr string

	mu          sync.Mutex
	dialTimeout time.Duration
	listener    net.Listener
	connCh      chan transport.Conn
	quitCh      chan struct{}
	closed      bool
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{
		listenAddr: addr,
		connCh:     make(chan transport.Conn),
		quitCh:     make(chan struct{}),
	}
}

// SetDialTimeout bounds Dial. Zero means no bound.
func (t *TCPTransport) SetDialTimeout(d time.Duration) {
	t.mu.Lock()
	t.dialTimeout = d
	t.mu.Unlock()
}

func (t *TCPTransport) DialTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dialTimeout
}

func (t *TCPTransport) ListenAndAccept() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go t.acceptLoop(ln)
	return nil
}

func (t *TCPTransport) acceptLoop(ln net.Listener) {
	defer close(t.connCh)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			delay = acceptBackoff(delay)
			logger.Sugar.Errorf("[TCPTransport] accept error: listen=%s err=%v, retrying in %v", t.Addr(), err, delay)
			select {
			case <-time.After(delay):
			case <-t.quitCh:
				return
			}
			continue
		}
		delay = 0
		logger.Sugar.Debugf("[TCPTransport] accepted: remote=%s", conn.RemoteAddr())

		// Unbuffered: Accept does not run ahead of the consumers.
		select {
		case t.connCh <- NewTCPConn(conn):
		case <-t.quitCh:
			conn.Close()
			return
		}
	}
}

// acceptBackoff doubles the wait after each consecutive Accept failure,
// starting at 5ms and capped at 1s.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if next := 2 * prev; next < time.Second {
		return next
	}
	return time.Second
}

func (t *TCPTransport) Dial(addr string) (transport.Conn, error) {
	conn, err := Dial(addr, t.DialTimeout())
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Consume returns accepted connections. The channel is closed once the
// listener stops.
func (t *TCPTransport) Consume() <-chan transport.Conn {
	return t.connCh
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.quitCh)
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// Addr returns the bound address once listening, else the configured one.
func (t *TCPTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.listenAddr
}
