package registry

import (
	"sort"
	"sync"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
)

// Store holds the peer set and the file registry of one node. Every method is
// atomic; a Store is safe for use by several dispatcher workers.
type Store struct {
	mu    sync.Mutex
	peers []string          // insertion order, unique
	files map[string]string // filename -> owner address
}

func NewStore() *Store {
	return &Store{
		files: make(map[string]string),
	}
}

// AddPeer appends addr to the peer set. A duplicate, or a full set, is logged
// and ignored. Reports whether addr was added.
func (s *Store) AddPeer(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(addr) >= 0 {
		logger.Sugar.Warnf("[Registry] %s already exists in list of peers", addr)
		return false
	}
	if len(s.peers) >= protocol.MaxListSize {
		logger.Sugar.Warnf("[Registry] peer list full (%d), dropping %s", len(s.peers), addr)
		return false
	}
	s.peers = append(s.peers, addr)
	return true
}

// RemovePeer removes addr from the peer set. Callers pair it with
// RemovePeerFiles, or use DropPeer.
func (s *Store) RemovePeer(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removePeer(addr)
}

// RemovePeerFiles deletes every file entry owned by addr and returns how many went.
func (s *Store) RemovePeerFiles(addr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removePeerFiles(addr)
}

// DropPeer runs RemovePeerFiles then RemovePeer as one operation.
func (s *Store) DropPeer(addr string) (removedFiles int, wasPeer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removedFiles = s.removePeerFiles(addr)
	wasPeer = s.removePeer(addr)
	return removedFiles, wasPeer
}

// AddFile records addr as the owner of name, replacing any previous owner.
// A new name is refused once the registry holds MaxListSize entries.
func (s *Store) AddFile(name, addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists && len(s.files) >= protocol.MaxListSize {
		logger.Sugar.Warnf("[Registry] file list full (%d), dropping %s from %s", len(s.files), name, addr)
		return false
	}
	s.files[name] = addr
	return true
}

// RemoveFile deletes the entry for name. The owner is not compared with addr:
// any caller may remove any entry by name.
func (s *Store) RemoveFile(name, _ string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists {
		return false
	}
	delete(s.files, name)
	return true
}

// ListPeers returns a copy of the peer set in insertion order.
func (s *Store) ListPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPeers()
}

// ListFiles returns a copy of the file registry sorted by filename.
func (s *Store) ListFiles() []protocol.FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listFiles()
}

// Owner returns the owner recorded for name.
func (s *Store) Owner(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.files[name]
	return owner, ok
}

// Snapshot copies both collections under a single lock.
func (s *Store) Snapshot() protocol.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.Snapshot{
		Peers: s.listPeers(),
		Files: s.listFiles(),
	}
}

func (s *Store) indexOf(addr string) int {
	for i, p := range s.peers {
		if p == addr {
			return i
		}
	}
	return -1
}

func (s *Store) removePeer(addr string) bool {
	i := s.indexOf(addr)
	if i < 0 {
		return false
	}
	s.peers = append(s.peers[:i], s.peers[i+1:]...)
	return true
}

func (s *Store) removePeerFiles(addr string) int {
	n := 0
	for name, owner := range s.files {
		if owner == addr {
			delete(s.files, name)
			n++
		}
	}
	return n
}

func (s *Store) listPeers() []string {
	out := make([]string, len(s.peers))
	copy(out, s.peers)
	return out
}

func (s *Store) listFiles() []protocol.FileEntry {
	out := make([]protocol.FileEntry, 0, len(s.files))
	for name, owner := range s.files {
		out = append(out, protocol.FileEntry{Name: name, Owner: owner})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
