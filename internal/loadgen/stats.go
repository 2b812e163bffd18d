package loadgen

import (
	"sync/atomic"
	"time"
)

// Stats is shared by every worker of one run. Counters are plain atomics so
// no worker ever waits on another to record an outcome.
type Stats struct {
	startedAt time.Time
	endedAt   atomic.Int64 // unix nanos, 0 while the run is draining

	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	bytesSent atomic.Int64
}

func newStats(startedAt time.Time) *Stats {
	return &Stats{startedAt: startedAt}
}

func (s *Stats) attempt() { s.attempted.Add(1) }

// success bumps succeeded before bytesSent. Snapshot reads them in the
// opposite order, so a snapshot never shows bytes ahead of successes.
func (s *Stats) success(bytes int) {
	s.succeeded.Add(1)
	s.bytesSent.Add(int64(bytes))
}

func (s *Stats) failure() { s.failed.Add(1) }

func (s *Stats) finish(at time.Time) {
	s.endedAt.CompareAndSwap(0, at.UnixNano())
}

// StatsSnapshot is a point-in-time read of Stats. Fields are read one by one,
// so the snapshot is not atomic across fields.
type StatsSnapshot struct {
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Attempted int64      `json:"attempted"`
	Succeeded int64      `json:"succeeded"`
	Failed    int64      `json:"failed"`
	BytesSent int64      `json:"bytes_sent"`
}

// Snapshot reads outcomes before attempts. Every outcome is recorded after
// its attempt, so the snapshot always satisfies Succeeded+Failed <= Attempted.
// BytesSent is read before Succeeded for the same reason.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		BytesSent: s.bytesSent.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
	snap.Attempted = s.attempted.Load()

	started := s.startedAt
	snap.StartedAt = &started

	if ns := s.endedAt.Load(); ns != 0 {
		ended := time.Unix(0, ns).UTC()
		snap.EndedAt = &ended
	}

	return snap
}
