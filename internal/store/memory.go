package store

import (
	"errors"
	"sync"
	"time"

	"github.com/kalder/weather-staging/internal/orchestrator"
)

// ErrNoRuns is returned when no collection run has completed yet.
var ErrNoRuns = errors.New("no runs recorded")

// RunStore is a concurrency-safe in-memory history of run results, backing
// the status API. Staged parquet files are the durable record; this history
// only serves operational visibility.
type RunStore struct {
	mu   sync.RWMutex
	runs []orchestrator.Result

	// retention configuration
	maxHistory int           // max number of runs retained
	maxAge     time.Duration // optional max age for runs
}

// NewRunStore creates a new RunStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewRunStore(maxHistory int, maxAge time.Duration) *RunStore {
	return &RunStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Record appends a run result and enforces retention.
func (s *RunStore) Record(result orchestrator.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, result)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = s.runs[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs); i++ {
			if !s.runs[i].FinishedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(s.runs) {
			s.runs = s.runs[i:]
		}
	}
}

// Latest returns the most recent run result.
func (s *RunStore) Latest() (orchestrator.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return orchestrator.Result{}, ErrNoRuns
	}
	return s.runs[len(s.runs)-1], nil
}

// All returns the retained run results, oldest first.
func (s *RunStore) All() []orchestrator.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orchestrator.Result, len(s.runs))
	copy(out, s.runs)
	return out
}
