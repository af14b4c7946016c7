package registry

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/monitor"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
)

// fakeConn serves a fixed request and records the reply. Writes fail once
// writeBudget reaches zero; a negative budget never fails.
type fakeConn struct {
	host        string
	in          *bytes.Reader
	out         bytes.Buffer
	writeBudget int
}

func newFakeConn(host string, in []byte) *fakeConn {
	return &fakeConn{host: host, in: bytes.NewReader(in), writeBudget: -1}
}

func (c *fakeConn) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeBudget == 0 {
		return 0, io.ErrClosedPipe
	}
	if c.writeBudget > 0 {
		c.writeBudget--
	}
	return c.out.Write(p)
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) RemoteHost() string { return c.host }
func (c *fakeConn) SetDeadline(_ time.Time) error { return nil }

func request(t *testing.T, typ protocol.RequestType, port, filename string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := protocol.WriteRequest(&buf, typ, port, filename); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func addPeer(t *testing.T, d *Dispatcher, host, port string) protocol.Snapshot {
	t.Helper()
	conn := newFakeConn(host, request(t, protocol.AddPeer, port, ""))
	if err := d.Handle(conn); err != nil {
		t.Fatalf("add-peer %s:%s: %v", host, port, err)
	}
	snap, err := protocol.ReadSnapshot(&conn.out)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return snap
}

func send(t *testing.T, d *Dispatcher, host string, typ protocol.RequestType, port, filename string) {
	t.Helper()
	conn := newFakeConn(host, request(t, typ, port, filename))
	if err := d.Handle(conn); err != nil {
		t.Fatalf("%s: %v", typ, err)
	}
	if conn.out.Len() != 0 {
		t.Errorf("%s wrote a %d-byte reply, want none", typ, conn.out.Len())
	}
}

func TestDispatcherScenario(t *testing.T) {
	store := NewStore()
	d := NewDispatcher(store, nil)

	snap := addPeer(t, d, "10.0.0.1", "5000")
	if len(snap.Peers) != 0 || len(snap.Files) != 0 {
		t.Fatalf("first reply = %+v, want empty", snap)
	}
	if got := store.ListPeers(); !equalStrings(got, []string{"10.0.0.1:5000"}) {
		t.Fatalf("peers = %v", got)
	}

	send(t, d, "10.0.0.1", protocol.AddFile, "5000", "movie.mp4")
	files := store.ListFiles()
	if len(files) != 1 || files[0] != (protocol.FileEntry{Name: "movie.mp4", Owner: "10.0.0.1:5000"}) {
		t.Fatalf("files = %v", files)
	}

	snap = addPeer(t, d, "10.0.0.2", "5001")
	if !equalStrings(snap.Peers, []string{"10.0.0.1:5000"}) {
		t.Errorf("second reply peers = %v", snap.Peers)
	}
	if len(snap.Files) != 1 || snap.Files[0] != (protocol.FileEntry{Name: "movie.mp4", Owner: "10.0.0.1:5000"}) {
		t.Errorf("second reply files = %v", snap.Files)
	}
	if n := len(store.ListPeers()); n != 2 {
		t.Errorf("peers = %d, want 2", n)
	}

	send(t, d, "10.0.0.1", protocol.RemovePeer, "5000", "")
	if n := len(store.ListFiles()); n != 0 {
		t.Errorf("files after remove-peer = %v", store.ListFiles())
	}
	if got := store.ListPeers(); !equalStrings(got, []string{"10.0.0.2:5001"}) {
		t.Errorf("peers after remove-peer = %v", got)
	}
}

func TestDispatcherDuplicateJoin(t *testing.T) {
	store := NewStore()
	d := NewDispatcher(store, nil)

	addPeer(t, d, "10.0.0.1", "5000")
	snap := addPeer(t, d, "10.0.0.1", "5000")
	// The second join sees itself: it was registered by the first.
	if !equalStrings(snap.Peers, []string{"10.0.0.1:5000"}) {
		t.Errorf("reply peers = %v", snap.Peers)
	}
	if n := len(store.ListPeers()); n != 1 {
		t.Errorf("peers = %d, want 1", n)
	}
}

func TestDispatcherRemoveFileAnyAddress(t *testing.T) {
	store := NewStore()
	d := NewDispatcher(store, nil)

	send(t, d, "10.0.0.1", protocol.AddFile, "5000", "a.txt")
	send(t, d, "10.0.0.9", protocol.RemoveFile, "9999", "a.txt")
	if n := len(store.ListFiles()); n != 0 {
		t.Errorf("files = %v", store.ListFiles())
	}
}

func TestDispatcherUnknownType(t *testing.T) {
	store := NewStore()
	metrics := monitor.New()
	d := NewDispatcher(store, metrics)

	conn := newFakeConn("10.0.0.1", []byte{'Z', 4, '5', '0', '0', '0'})
	err := d.Handle(conn)

	var pe *protocol.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if conn.out.Len() != 0 {
		t.Error("unknown request got a reply")
	}
	if len(store.ListPeers()) != 0 || len(store.ListFiles()) != 0 {
		t.Error("unknown request mutated the store")
	}
	if c := metrics.Snapshot(); c.Ignored != 1 || c.Failed != 0 {
		t.Errorf("counts = %+v", c)
	}
}

func TestDispatcherTruncatedRequests(t *testing.T) {
	tests := []struct {
		name string
		wire []byte
	}{
		{"empty", nil},
		{"add-peer missing port", []byte{'A', 4, '5', '0'}},
		{"remove-peer missing length", []byte{'R'}},
		{"add-file missing filename", []byte{'F', 1, '1'}},
		{"add-file short filename", []byte{'F', 1, '1', 3, 'a'}},
		{"remove-file missing filename", []byte{'f', 1, '1'}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore()
			store.AddPeer("10.0.0.1:1")
			store.AddFile("keep", "10.0.0.1:1")
			metrics := monitor.New()
			d := NewDispatcher(store, metrics)

			err := d.Handle(newFakeConn("10.0.0.1", tc.wire))
			if !protocol.IsTransport(err) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if len(store.ListPeers()) != 1 || len(store.ListFiles()) != 1 {
				t.Errorf("store changed: peers=%v files=%v", store.ListPeers(), store.ListFiles())
			}
			if metrics.Snapshot().Failed != 1 {
				t.Errorf("failure not counted")
			}
		})
	}
}

func TestDispatcherAddPeerSendFailure(t *testing.T) {
	store := NewStore()
	store.AddPeer("10.0.0.1:5000")
	d := NewDispatcher(store, nil)

	// Peer count goes out, the first peer string does not.
	conn := newFakeConn("10.0.0.2", request(t, protocol.AddPeer, "5001", ""))
	conn.writeBudget = 1

	err := d.Handle(conn)
	if !protocol.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if got := store.ListPeers(); !equalStrings(got, []string{"10.0.0.1:5000"}) {
		t.Errorf("joining peer registered despite failed reply: %v", got)
	}
}

func TestDispatcherAddressTooLong(t *testing.T) {
	store := NewStore()
	d := NewDispatcher(store, nil)

	port := strings.Repeat("9", protocol.MaxStringSize)
	err := d.Handle(newFakeConn("10.0.0.1", request(t, protocol.AddFile, port, "x")))

	var pe *protocol.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if len(store.ListFiles()) != 0 {
		t.Error("file registered under an unencodable address")
	}
}

func TestDispatcherAddFileAtCapacity(t *testing.T) {
	store := NewStore()
	for i := 0; i < protocol.MaxListSize; i++ {
		store.AddFile("file-"+strconv.Itoa(i), "10.0.0.1:5000")
	}
	metrics := monitor.New()
	d := NewDispatcher(store, metrics)

	// Refused without a reply; the request itself still succeeds.
	send(t, d, "10.0.0.2", protocol.AddFile, "5001", "one-too-many")
	if _, ok := store.Owner("one-too-many"); ok {
		t.Error("file registered past the list limit")
	}
	if n := len(store.ListFiles()); n != protocol.MaxListSize {
		t.Errorf("files = %d, want %d", n, protocol.MaxListSize)
	}

	// Re-announcing a known name only changes its owner.
	send(t, d, "10.0.0.2", protocol.AddFile, "5001", "file-0")
	if owner, _ := store.Owner("file-0"); owner != "10.0.0.2:5001" {
		t.Errorf("owner = %s", owner)
	}

	// A full list still encodes into an add-peer reply.
	snap := addPeer(t, d, "10.0.0.3", "5002")
	if len(snap.Files) != protocol.MaxListSize {
		t.Errorf("reply files = %d", len(snap.Files))
	}
	if c := metrics.Snapshot(); c.AddFile != 2 || c.Failed != 0 {
		t.Errorf("counts = %+v", c)
	}
}

func TestDispatcherCountsRequests(t *testing.T) {
	metrics := monitor.New()
	d := NewDispatcher(NewStore(), metrics)

	addPeer(t, d, "h", "1")
	send(t, d, "h", protocol.AddFile, "1", "a")
	send(t, d, "h", protocol.RemoveFile, "1", "a")
	send(t, d, "h", protocol.RemovePeer, "1", "")

	want := monitor.Counts{AddPeer: 1, AddFile: 1, RemoveFile: 1, RemovePeer: 1}
	if got := metrics.Snapshot(); got != want {
		t.Errorf("counts = %+v, want %+v", got, want)
	}
}
