package keybarrier

import "sync/atomic"

// Outcome is the branch a barrier call took.
type Outcome int

const (
	// OutcomeNone is returned alongside argument errors; no branch was taken.
	OutcomeNone Outcome = iota

	// OutcomeFastPath means the key was already done; no lock was taken.
	OutcomeFastPath

	// OutcomeRacedAfterLock means the caller acquired the lock and found the
	// work completed by another caller while it waited.
	OutcomeRacedAfterLock

	// OutcomeExecuted means this caller ran the work and marked the key done.
	OutcomeExecuted

	// OutcomeFailed means this caller ran the work and it failed.
	OutcomeFailed

	// OutcomeInterrupted means the caller stopped waiting for the lock.
	OutcomeInterrupted
)

// String returns the outcome name used in logs, metrics, and spans.
func (o Outcome) String() string {
	switch o {
	case OutcomeFastPath:
		return "fast_path"
	case OutcomeRacedAfterLock:
		return "raced_after_lock"
	case OutcomeExecuted:
		return "executed"
	case OutcomeFailed:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

// Skipped reports whether the caller returned without running the work
// because it was already done.
func (o Outcome) Skipped() bool {
	return o == OutcomeFastPath || o == OutcomeRacedAfterLock
}

// Stats is a snapshot of a barrier's counters.
type Stats struct {
	FastPath         int64
	RacedAfterLock   int64
	Executed         int64
	Failed           int64
	Interrupted      int64
	LockAcquisitions int64
}

// Calls returns the total number of calls that took a branch.
func (s Stats) Calls() int64 {
	return s.FastPath + s.RacedAfterLock + s.Executed + s.Failed + s.Interrupted
}

// Sub returns the counter deltas s - prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		FastPath:         s.FastPath - prev.FastPath,
		RacedAfterLock:   s.RacedAfterLock - prev.RacedAfterLock,
		Executed:         s.Executed - prev.Executed,
		Failed:           s.Failed - prev.Failed,
		Interrupted:      s.Interrupted - prev.Interrupted,
		LockAcquisitions: s.LockAcquisitions - prev.LockAcquisitions,
	}
}

type counters struct {
	fastPath         atomic.Int64
	racedAfterLock   atomic.Int64
	executed         atomic.Int64
	failed           atomic.Int64
	interrupted      atomic.Int64
	lockAcquisitions atomic.Int64
}

func (c *counters) add(o Outcome) {
	switch o {
	case OutcomeFastPath:
		c.fastPath.Add(1)
	case OutcomeRacedAfterLock:
		c.racedAfterLock.Add(1)
	case OutcomeExecuted:
		c.executed.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	case OutcomeInterrupted:
		c.interrupted.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		FastPath:         c.fastPath.Load(),
		RacedAfterLock:   c.racedAfterLock.Load(),
		Executed:         c.executed.Load(),
		Failed:           c.failed.Load(),
		Interrupted:      c.interrupted.Load(),
		LockAcquisitions: c.lockAcquisitions.Load(),
	}
}
