package peer

import (
	"context"
	"fmt"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
	"tarun-kavipurapu/p2p-registry/pkg/transport"
	"tarun-kavipurapu/p2p-registry/pkg/transport/tcp"

	"go.uber.org/multierr"
)

// DialFunc opens one connection to a registry node.
type DialFunc func(addr string) (transport.Conn, error)

// Client talks to a registry node on behalf of a peer listening on ListenPort.
// Every call uses its own connection.
type Client struct {
	ServerAddr string
	ListenPort string
	// Timeout bounds each request when the context has no earlier deadline.
	Timeout time.Duration

	trans *tcp.TCPTransport
	dial  DialFunc
}

func NewClient(serverAddr, listenPort string) *Client {
	c := &Client{
		ServerAddr: serverAddr,
		ListenPort: listenPort,
		Timeout:    10 * time.Second,
		trans:      tcp.NewTCPTransport(""),
	}
	c.dial = c.dialTCP
	return c
}

// dialTCP opens the connection through the client's transport, bounded by
// the current Timeout.
func (c *Client) dialTCP(addr string) (transport.Conn, error) {
	c.trans.SetDialTimeout(c.Timeout)
	return c.trans.Dial(addr)
}

// SetDialer replaces how connections are opened.
func (c *Client) SetDialer(d DialFunc) {
	c.dial = d
}

// Join registers this peer and returns the peers and files the node knew
// before it was added.
func (c *Client) Join(ctx context.Context) (protocol.Snapshot, error) {
	var snap protocol.Snapshot
	err := c.do(ctx, protocol.AddPeer, "", func(conn transport.Conn) error {
		var err error
		snap, err = protocol.ReadSnapshot(conn)
		return err
	})
	if err != nil {
		return protocol.Snapshot{}, err
	}
	logger.Sugar.Infof("[Peer] joined %s: peers=%d files=%d", c.ServerAddr, len(snap.Peers), len(snap.Files))
	return snap, nil
}

// Leave removes this peer and every file it shared.
func (c *Client) Leave(ctx context.Context) error {
	return c.do(ctx, protocol.RemovePeer, "", nil)
}

// Share announces that this peer holds filename.
func (c *Client) Share(ctx context.Context, filename string) error {
	return c.do(ctx, protocol.AddFile, filename, nil)
}

// Unshare removes the registry entry for filename.
func (c *Client) Unshare(ctx context.Context, filename string) error {
	return c.do(ctx, protocol.RemoveFile, filename, nil)
}

func (c *Client) do(ctx context.Context, t protocol.RequestType, filename string, reply func(transport.Conn) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := c.dial(c.ServerAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.ServerAddr, err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	if deadline, ok := c.deadline(ctx); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	// An expired deadline unblocks any pending read or write once ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-stop:
		}
	}()

	if err := protocol.WriteRequest(conn, t, c.ListenPort, filename); err != nil {
		return fmt.Errorf("%s request: %w", t, err)
	}
	if reply != nil {
		if err := reply(conn); err != nil {
			return fmt.Errorf("%s reply: %w", t, err)
		}
	}
	logger.Sugar.Debugf("[Peer] %s sent to %s", t, c.ServerAddr)
	return nil
}

func (c *Client) deadline(ctx context.Context) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if c.Timeout > 0 {
		limit := time.Now().Add(c.Timeout)
		if !ok || limit.Before(deadline) {
			return limit, true
		}
	}
	return deadline, ok
}
