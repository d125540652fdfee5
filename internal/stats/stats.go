// Package stats tracks server-wide performance counters. Counters use
// go.uber.org/atomic so the background snapshot goroutine can read them
// without contending with the event loop's hot path over a mutex.
package stats

import "go.uber.org/atomic"

// Stats holds the counters logged by the server's periodic background
// snapshot. The "config" subcommand does not show them.
type Stats struct {
	TotalOps    atomic.Uint64
	GetOps      atomic.Uint64
	SetOps      atomic.Uint64
	DelOps      atomic.Uint64
	Connections atomic.Uint64
}

// New returns a zeroed Stats.
func New() *Stats {
	return &Stats{}
}

func (s *Stats) IncTotalOps()    { s.TotalOps.Inc() }
func (s *Stats) IncGetOps()      { s.GetOps.Inc() }
func (s *Stats) IncSetOps()      { s.SetOps.Inc() }
func (s *Stats) IncDelOps()      { s.DelOps.Inc() }
func (s *Stats) IncConnections() { s.Connections.Inc() }

// Snapshot is an immutable copy safe to log or print.
type Snapshot struct {
	TotalOps    uint64
	GetOps      uint64
	SetOps      uint64
	DelOps      uint64
	Connections uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalOps:    s.TotalOps.Load(),
		GetOps:      s.GetOps.Load(),
		SetOps:      s.SetOps.Load(),
		DelOps:      s.DelOps.Load(),
		Connections: s.Connections.Load(),
	}
}
