package monitor

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"tarun-kavipurapu/p2p-registry/pkg/logger"
	"tarun-kavipurapu/p2p-registry/pkg/protocol"
)

// Metrics counts handled requests for one node
type Metrics struct {
	addPeer    int64
	removePeer int64
	addFile    int64
	removeFile int64
	// unknown request type byte
	ignored int64
	// aborted by a transport or protocol error
	failed int64

	// Server start time
	ServerStart time.Time
}

// Counts is a point-in-time copy of the counters.
type Counts struct {
	AddPeer    int64
	RemovePeer int64
	AddFile    int64
	RemoveFile int64
	Ignored    int64
	Failed     int64
}

func (c Counts) Total() int64 {
	return c.AddPeer + c.RemovePeer + c.AddFile + c.RemoveFile + c.Ignored + c.Failed
}

func (c Counts) String() string {
	return fmt.Sprintf("add-peer=%d remove-peer=%d add-file=%d remove-file=%d ignored=%d failed=%d",
		c.AddPeer, c.RemovePeer, c.AddFile, c.RemoveFile, c.Ignored, c.Failed)
}

func New() *Metrics {
	return &Metrics{ServerStart: time.Now()}
}

// RecordRequest counts a request that ran to completion.
func (m *Metrics) RecordRequest(t protocol.RequestType) {
	switch t {
	case protocol.AddPeer:
		atomic.AddInt64(&m.addPeer, 1)
	case protocol.RemovePeer:
		atomic.AddInt64(&m.removePeer, 1)
	case protocol.AddFile:
		atomic.AddInt64(&m.addFile, 1)
	case protocol.RemoveFile:
		atomic.AddInt64(&m.removeFile, 1)
	default:
		atomic.AddInt64(&m.ignored, 1)
	}
}

func (m *Metrics) RecordIgnored() {
	atomic.AddInt64(&m.ignored, 1)
}

func (m *Metrics) RecordFailure() {
	atomic.AddInt64(&m.failed, 1)
}

func (m *Metrics) Snapshot() Counts {
	return Counts{
		AddPeer:    atomic.LoadInt64(&m.addPeer),
		RemovePeer: atomic.LoadInt64(&m.removePeer),
		AddFile:    atomic.LoadInt64(&m.addFile),
		RemoveFile: atomic.LoadInt64(&m.removeFile),
		Ignored:    atomic.LoadInt64(&m.ignored),
		Failed:     atomic.LoadInt64(&m.failed),
	}
}

// LogPeriodic logs runtime metrics at the specified interval until quit is closed
func (m *Metrics) LogPeriodic(interval time.Duration, quit <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)

			counts := m.Snapshot()
			elapsed := time.Since(m.ServerStart).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(counts.Total()) / elapsed
			}

			logger.Sugar.Infof("[Metrics] Goroutines=%d | HeapAlloc=%dMB | HeapSys=%dMB | Requests=%.2f/s | %s",
				runtime.NumGoroutine(),
				ms.HeapAlloc/1024/1024,
				ms.HeapSys/1024/1024,
				rate,
				counts,
			)
		}
	}
}
