package scheduler

import (
	"sync"
	"time"
)

// MinPollGap is the shortest allowed spacing between two issued polls.
const MinPollGap = 60 * time.Second

// Schedule decides when a weather poll may be issued. The error latch
// suspends polling until the Schedule is replaced.
type Schedule struct {
	mu           sync.Mutex
	lastPolledAt time.Time
	interval     time.Duration
	hasError     bool
}

// NewSchedule creates an idle schedule; the first TryIssue always succeeds.
func NewSchedule(interval time.Duration) *Schedule {
	return &Schedule{interval: interval}
}

// Due reports whether the refresh interval has elapsed since the last poll.
func (s *Schedule) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPolledAt.IsZero() || now.Sub(s.lastPolledAt) >= s.interval
}

// TryIssue records a poll at now unless one was issued within MinPollGap or
// the latch is set. It returns whether the poll may go ahead.
func (s *Schedule) TryIssue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasError {
		return false
	}
	if !s.lastPolledAt.IsZero() && now.Sub(s.lastPolledAt) < MinPollGap {
		return false
	}
	if now.After(s.lastPolledAt) {
		s.lastPolledAt = now
	}
	return true
}

// Latch suspends automatic polling.
func (s *Schedule) Latch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasError = true
}

// Clear lifts the latch after a successful response.
func (s *Schedule) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasError = false
}

// Snapshot is a read-only copy of the schedule state.
type Snapshot struct {
	LastPolledAt time.Time     `json:"lastPolledAt"`
	Interval     time.Duration `json:"interval"`
	HasError     bool          `json:"hasError"`
}

// Snapshot returns the current state.
func (s *Schedule) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{LastPolledAt: s.lastPolledAt, Interval: s.interval, HasError: s.hasError}
}
