package registry

import (
	"fmt"
	"io"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/monitor"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
	"tarun-kavipurapu/p2p-registry/pkg/transport"
)

type handlerFunc func(w io.Writer, req protocol.Request) error

// Dispatcher runs exactly one request per connection against a Store.
type Dispatcher struct {
	store    *Store
	metrics  *monitor.Metrics
	handlers map[protocol.RequestType]handlerFunc
}

func NewDispatcher(store *Store, metrics *monitor.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = monitor.New()
	}
	d := &Dispatcher{
		store:   store,
		metrics: metrics,
	}
	d.handlers = map[protocol.RequestType]handlerFunc{
		protocol.AddPeer:    d.handleAddPeer,
		protocol.RemovePeer: d.handleRemovePeer,
		protocol.AddFile:    d.handleAddFile,
		protocol.RemoveFile: d.handleRemoveFile,
	}
	return d
}

// Handle reads the request-type byte, decodes the body and applies it. It does
// not close conn. Any error aborts the remaining steps; whatever steps already
// ran stay applied.
//
// An unrecognized type byte is not acted on and no reply is sent; Handle
// reports it as a *protocol.ProtocolError so the caller can log it.
func (d *Dispatcher) Handle(conn transport.Conn) error {
	host := conn.RemoteHost()

	reqType, err := protocol.ReadRequestType(conn)
	if err != nil {
		d.metrics.RecordFailure()
		return fmt.Errorf("from %s: %w", host, err)
	}

	handler, ok := d.handlers[reqType]
	if !ok {
		d.metrics.RecordIgnored()
		return &protocol.ProtocolError{Type: reqType, Reason: "unrecognized request type from " + host + ", ignored"}
	}

	req, err := protocol.ReadRequest(conn, reqType, host)
	if err == nil {
		err = validate(req)
	}
	if err == nil {
		err = handler(conn, req)
	}
	if err != nil {
		d.metrics.RecordFailure()
		return fmt.Errorf("%s from %s: %w", reqType, host, err)
	}

	d.metrics.RecordRequest(reqType)
	return nil
}

// validate rejects addresses that could never be echoed back in a reply.
func validate(req protocol.Request) error {
	if len(req.Addr) > protocol.MaxStringSize {
		return &protocol.ProtocolError{Type: req.Type, Reason: fmt.Sprintf("address is %d bytes, limit %d", len(req.Addr), protocol.MaxStringSize)}
	}
	return nil
}

// The joining peer is added only after both lists are sent, so it never sees
// itself and a failed send leaves it unregistered.
func (d *Dispatcher) handleAddPeer(w io.Writer, req protocol.Request) error {
	snap := d.store.Snapshot()

	if err := protocol.WritePeerList(w, snap.Peers); err != nil {
		return fmt.Errorf("send peer list: %w", err)
	}
	if err := protocol.WriteFileList(w, snap.Files); err != nil {
		return fmt.Errorf("send file list: %w", err)
	}

	if d.store.AddPeer(req.Addr) {
		logger.Sugar.Infof("[Dispatcher] peer added: addr=%s sentPeers=%d sentFiles=%d", req.Addr, len(snap.Peers), len(snap.Files))
	}
	return nil
}

func (d *Dispatcher) handleRemovePeer(_ io.Writer, req protocol.Request) error {
	files, wasPeer := d.store.DropPeer(req.Addr)
	logger.Sugar.Infof("[Dispatcher] peer removed: addr=%s known=%t files=%d", req.Addr, wasPeer, files)
	return nil
}

func (d *Dispatcher) handleAddFile(_ io.Writer, req protocol.Request) error {
	if d.store.AddFile(req.Filename, req.Addr) {
		logger.Sugar.Infof("[Dispatcher] file added: name=%s owner=%s", req.Filename, req.Addr)
	}
	return nil
}

func (d *Dispatcher) handleRemoveFile(_ io.Writer, req protocol.Request) error {
	removed := d.store.RemoveFile(req.Filename, req.Addr)
	logger.Sugar.Infof("[Dispatcher] file removed: name=%s by=%s existed=%t", req.Filename, req.Addr, removed)
	return nil
}
