// Package report records the results of workload runs and persists them.
//
// A Report is produced by workload.Run. Stores keep reports across process
// restarts so the keybarrier command can list earlier runs. Three stores are
// provided:
//   - MemoryStore: process-local, for tests and one-shot runs
//   - SQLiteStore: a single SQLite file (pure Go driver, no cgo)
//   - BoltStore: a single bbolt file
//
// All stores satisfy the same contract and are safe for concurrent use.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report summarises one workload run.
type Report struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	// Workload shape.
	Callers int           `json:"callers"`
	Keys    int           `json:"keys"`
	Work    time.Duration `json:"work_ns"`

	// Per-outcome call counts.
	FastPath       int `json:"fast_path"`
	RacedAfterLock int `json:"raced_after_lock"`
	Executed       int `json:"executed"`
	Failed         int `json:"failed"`
	Interrupted    int `json:"interrupted"`

	// LockAcquisitions counts calls that got past the fast path and held a lock.
	LockAcquisitions int `json:"lock_acquisitions"`

	// PerKey counts successful executions per key. Every entry should be 1.
	PerKey map[string]int `json:"per_key"`

	// StripeEntries is the number of live stripe locks after the run.
	// Zero once every caller has returned.
	StripeEntries int `json:"stripe_entries"`
}

// New returns an empty report with a fresh ID.
func New(startedAt time.Time) *Report {
	return &Report{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		PerKey:    make(map[string]int),
	}
}

// Calls returns the number of calls the report accounts for.
func (r *Report) Calls() int {
	return r.FastPath + r.RacedAfterLock + r.Executed + r.Failed + r.Interrupted
}

// Skipped returns the number of calls that found the work already done.
func (r *Report) Skipped() int {
	return r.FastPath + r.RacedAfterLock
}

// Summary renders the counters as a single line:
//
//	lockNoSleep=3,lockSleep=10,noLockNoSleep=87,acquiredLocks=13,failed=0,interrupted=0
//
// lockSleep counts calls that ran the work, lockNoSleep calls that took the
// lock but found the work done, and noLockNoSleep calls that never locked.
func (r *Report) Summary() string {
	return fmt.Sprintf("lockNoSleep=%d,lockSleep=%d,noLockNoSleep=%d,acquiredLocks=%d,failed=%d,interrupted=%d",
		r.RacedAfterLock, r.Executed, r.FastPath, r.LockAcquisitions, r.Failed, r.Interrupted)
}

// Info returns the report's listing metadata.
func (r *Report) Info() Info {
	return Info{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Callers:   r.Callers,
		Executed:  r.Executed,
	}
}

// Marshal encodes r as JSON.
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a report produced by Marshal.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	if r.PerKey == nil {
		r.PerKey = make(map[string]int)
	}
	return &r, nil
}
