package service

import (
	"sync/atomic"
	"time"
)

// State is the shared liveness surface: the admin endpoint reads it, the
// pricefeed and the orchestrator write it.
type State struct {
	startedAt       time.Time
	ready           atomic.Bool
	streamConnected atomic.Bool
	lastCycleUnix   atomic.Int64
}

func NewState() *State { return &State{startedAt: time.Now()} }

func (s *State) SetReady(v bool)           { s.ready.Store(v) }
func (s *State) SetStreamConnected(v bool) { s.streamConnected.Store(v) }
func (s *State) MarkCycle()                { s.lastCycleUnix.Store(time.Now().Unix()) }

type Snapshot struct {
	Ready           bool  `json:"ready"`
	StreamConnected bool  `json:"stream_connected"`
	LastCycleUnix   int64 `json:"last_cycle_unix"`
	UptimeSec       int64 `json:"uptime_sec"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Ready:           s.ready.Load(),
		StreamConnected: s.streamConnected.Load(),
		LastCycleUnix:   s.lastCycleUnix.Load(),
		UptimeSec:       int64(time.Since(s.startedAt).Seconds()),
	}
}
