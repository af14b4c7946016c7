package registry

import (
	"fmt"
	"sync"
	"testing"

	"tarun-kavipurapu/p2p-registry/pkg/protocol"
)

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddPeerKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	want := []string{"10.0.0.3:1", "10.0.0.1:2", "10.0.0.2:3"}
	for _, p := range want {
		if !s.AddPeer(p) {
			t.Fatalf("AddPeer(%s) = false", p)
		}
	}
	if got := s.ListPeers(); !equalStrings(got, want) {
		t.Errorf("ListPeers = %v, want %v", got, want)
	}
}

func TestAddPeerDuplicateIsNoop(t *testing.T) {
	s := NewStore()
	s.AddPeer("10.0.0.1:5000")
	s.AddPeer("10.0.0.2:5000")
	if s.AddPeer("10.0.0.1:5000") {
		t.Error("duplicate AddPeer reported an insert")
	}
	want := []string{"10.0.0.1:5000", "10.0.0.2:5000"}
	if got := s.ListPeers(); !equalStrings(got, want) {
		t.Errorf("ListPeers = %v, want %v", got, want)
	}
}

func TestAddPeerCapacity(t *testing.T) {
	s := NewStore()
	for i := 0; i < protocol.MaxListSize; i++ {
		s.AddPeer(fmt.Sprintf("10.0.0.1:%d", i))
	}
	if s.AddPeer("10.0.0.2:1") {
		t.Error("AddPeer past capacity succeeded")
	}
	if n := len(s.ListPeers()); n != protocol.MaxListSize {
		t.Errorf("len = %d", n)
	}
}

func TestRemovePeerCascade(t *testing.T) {
	s := NewStore()
	s.AddPeer("p1:1")
	s.AddPeer("p2:2")
	s.AddFile("a", "p1:1")
	s.AddFile("b", "p1:1")
	s.AddFile("c", "p2:2")

	files, wasPeer := s.DropPeer("p1:1")
	if files != 2 || !wasPeer {
		t.Errorf("DropPeer = (%d, %t)", files, wasPeer)
	}
	if got := s.ListPeers(); !equalStrings(got, []string{"p2:2"}) {
		t.Errorf("ListPeers = %v", got)
	}
	got := s.ListFiles()
	if len(got) != 1 || got[0] != (protocol.FileEntry{Name: "c", Owner: "p2:2"}) {
		t.Errorf("ListFiles = %v", got)
	}
}

func TestRemovePeerFilesWithoutPeer(t *testing.T) {
	// Files may name an owner that never joined.
	s := NewStore()
	s.AddFile("x", "ghost:1")
	if n := s.RemovePeerFiles("ghost:1"); n != 1 {
		t.Errorf("RemovePeerFiles = %d", n)
	}
	if s.RemovePeer("ghost:1") {
		t.Error("RemovePeer of unknown peer reported a removal")
	}
	if len(s.ListFiles()) != 0 {
		t.Error("file not removed")
	}
}

func TestAddFileOverwrites(t *testing.T) {
	s := NewStore()
	s.AddFile("movie.mp4", "10.0.0.1:5000")
	s.AddFile("movie.mp4", "10.0.0.2:5001")

	files := s.ListFiles()
	if len(files) != 1 {
		t.Fatalf("ListFiles = %v", files)
	}
	if owner, _ := s.Owner("movie.mp4"); owner != "10.0.0.2:5001" {
		t.Errorf("owner = %s", owner)
	}
}

func TestAddFileCapacity(t *testing.T) {
	s := NewStore()
	for i := 0; i < protocol.MaxListSize; i++ {
		s.AddFile(fmt.Sprintf("f%d", i), "p:1")
	}
	if s.AddFile("one-too-many", "p:1") {
		t.Error("new file past capacity accepted")
	}
	if !s.AddFile("f0", "p:2") {
		t.Error("overwrite of existing file refused at capacity")
	}
}

func TestRemoveFileIgnoresAddress(t *testing.T) {
	s := NewStore()
	s.AddFile("movie.mp4", "10.0.0.1:5000")

	if !s.RemoveFile("movie.mp4", "10.9.9.9:1") {
		t.Error("RemoveFile with a different address did not remove")
	}
	if _, ok := s.Owner("movie.mp4"); ok {
		t.Error("entry still present")
	}
	if s.RemoveFile("movie.mp4", "10.0.0.1:5000") {
		t.Error("second RemoveFile reported a removal")
	}
}

func TestListsAreCopies(t *testing.T) {
	s := NewStore()
	s.AddPeer("p:1")
	s.AddFile("a", "p:1")

	peers := s.ListPeers()
	peers[0] = "mutated"
	files := s.ListFiles()
	files[0].Owner = "mutated"

	if s.ListPeers()[0] != "p:1" || s.ListFiles()[0].Owner != "p:1" {
		t.Error("store state changed through a returned slice")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("10.0.0.%d:1", i)
			s.AddPeer(addr)
			s.AddFile(fmt.Sprintf("file-%d", i), addr)
			_ = s.Snapshot()
			if i%2 == 0 {
				s.DropPeer(addr)
			}
		}(i)
	}
	wg.Wait()

	if n := len(s.ListPeers()); n != 10 {
		t.Errorf("peers = %d, want 10", n)
	}
	if n := len(s.ListFiles()); n != 10 {
		t.Errorf("files = %d, want 10", n)
	}
}
