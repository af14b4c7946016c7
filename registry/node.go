package registry

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/discovery"
	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/monitor"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
	"tarun-kavipurapu/p2p-registry/pkg/transport"
	"tarun-kavipurapu/p2p-registry/pkg/transport/tcp"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// Node accepts connections and hands each one to the dispatcher.
type Node struct {
	cfg        Config
	store      *Store
	dispatcher *Dispatcher
	metrics    *monitor.Metrics
	Transport  transport.Transport
	advertiser *discovery.Advertiser

	quitCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	stopped  bool
	inFlight map[transport.Conn]struct{}
}

func NewNode(cfg Config) *Node {
	return NewNodeWithTransport(cfg, tcp.NewTCPTransport(cfg.ListenAddr))
}

func NewNodeWithTransport(cfg Config, trans transport.Transport) *Node {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	store := NewStore()
	metrics := monitor.New()

	return &Node{
		cfg:        cfg,
		store:      store,
		dispatcher: NewDispatcher(store, metrics),
		metrics:    metrics,
		Transport:  trans,
		advertiser: discovery.NewAdvertiser(),
		quitCh:     make(chan struct{}),
		inFlight:   make(map[transport.Conn]struct{}),
	}
}

// Start listens and serves until Stop.
func (n *Node) Start() error {
	if err := n.Listen(); err != nil {
		return err
	}
	n.Serve()
	return nil
}

// Listen binds the transport and starts the optional advertisement and
// metrics loop. It does not handle connections.
func (n *Node) Listen() error {
	logger.Sugar.Infof("[Node] [%s] starting node...", n.cfg.ListenAddr)

	if err := n.Transport.ListenAndAccept(); err != nil {
		return fmt.Errorf("listen on %s: %w", n.cfg.ListenAddr, err)
	}

	if n.cfg.Advertise {
		n.startAdvertising()
	}
	if n.cfg.MetricsInterval > 0 {
		go n.metrics.LogPeriodic(n.cfg.MetricsInterval, n.quitCh)
	}
	return nil
}

func (n *Node) startAdvertising() {
	_, portStr, err := net.SplitHostPort(n.Transport.Addr())
	if err != nil {
		logger.Sugar.Errorf("[Node] Failed to parse address: %v", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		logger.Sugar.Errorf("[Node] Not advertising, bad port %q", portStr)
		return
	}
	meta := map[string]string{
		"version": "1.0.0",
		"type":    "registry-node",
	}
	if err := n.advertiser.Start(n.cfg.InstanceName, port, meta); err != nil {
		logger.Sugar.Errorf("[Node] Failed to start mDNS advertisement: %v", err)
		return
	}
	logger.Sugar.Infof("[Node] mDNS advertisement started on port %d", port)
}

// Serve runs the configured number of workers and blocks until the transport
// stops delivering connections.
func (n *Node) Serve() {
	logger.Sugar.Infof("[Node] [%s] serving with %d worker(s)", n.Transport.Addr(), n.cfg.Workers)

	for i := 0; i < n.cfg.Workers; i++ {
		n.wg.Add(1)
		go n.loop()
	}
	n.wg.Wait()
	logger.Sugar.Info("[Node] stopped")
}

func (n *Node) loop() {
	defer n.wg.Done()

	for {
		select {
		case conn, ok := <-n.Transport.Consume():
			if !ok {
				return
			}
			n.handleConn(conn)
		case <-n.quitCh:
			return
		}
	}
}

func (n *Node) handleConn(conn transport.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Sugar.Debugf("[Node] close: remote=%s err=%v", conn.RemoteHost(), err)
		}
		n.logRegistry()
	}()

	if n.cfg.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(n.cfg.IOTimeout)); err != nil {
			logger.Sugar.Errorf("[Node] set deadline: remote=%s err=%v", conn.RemoteHost(), err)
			return
		}
	}

	// Tracked after the deadline is set so Stop's interrupt is not overridden.
	if !n.track(conn) {
		return
	}
	defer n.untrack(conn)

	if err := n.dispatcher.Handle(conn); err != nil {
		var pe *protocol.ProtocolError
		if errors.As(err, &pe) {
			logger.Sugar.Warnf("[Node] request dropped: %v", err)
		} else {
			logger.Sugar.Errorf("[Node] request aborted: %v", err)
		}
	}
}

// track registers conn as in flight. It reports false once Stop has run.
func (n *Node) track(conn transport.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return false
	}
	n.inFlight[conn] = struct{}{}
	return true
}

func (n *Node) untrack(conn transport.Conn) {
	n.mu.Lock()
	delete(n.inFlight, conn)
	n.mu.Unlock()
}

// interruptInFlight expires the deadline of every running request so its
// pending read or write fails at once.
func (n *Node) interruptInFlight() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopped = true
	for conn := range n.inFlight {
		if err := conn.SetDeadline(time.Now()); err != nil {
			logger.Sugar.Debugf("[Node] interrupt: remote=%s err=%v", conn.RemoteHost(), err)
		}
	}
	if len(n.inFlight) > 0 {
		logger.Sugar.Infof("[Node] interrupted %d in-flight request(s)", len(n.inFlight))
	}
}

func (n *Node) logRegistry() {
	if !logger.Log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	snap := n.store.Snapshot()
	logger.Sugar.Debugf("[Node] peers=%v", snap.Peers)
	for _, f := range snap.Files {
		logger.Sugar.Debugf("[Node] file %s (%s)", f.Name, f.Owner)
	}
}

func (n *Node) Store() *Store {
	return n.store
}

func (n *Node) Metrics() *monitor.Metrics {
	return n.metrics
}

func (n *Node) Addr() string {
	return n.Transport.Addr()
}

func (n *Node) GetStatus() string {
	snap := n.store.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Registry Node Running on: %s\n", n.Transport.Addr())
	fmt.Fprintf(&b, "Known Peers: %d\n", len(snap.Peers))
	for _, p := range snap.Peers {
		fmt.Fprintf(&b, " - %s\n", p)
	}
	fmt.Fprintf(&b, "Available Files: %d\n", len(snap.Files))
	for _, f := range snap.Files {
		fmt.Fprintf(&b, " - %s (%s)\n", f.Name, f.Owner)
	}
	fmt.Fprintf(&b, "Requests: %s\n", n.metrics.Snapshot())
	return b.String()
}

// Stop closes the listener and interrupts in-flight requests, so Serve
// returns without waiting on stalled peers.
func (n *Node) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		n.advertiser.Stop()
		close(n.quitCh)
		err = multierr.Append(err, n.Transport.Close())
		n.interruptInFlight()
	})
	return err
}
