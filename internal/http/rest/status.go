package rest

import (
	"sync"
	"time"

	"github.com/italolelis/telegroup_downloader/internal/downloader"
)

// RunStatus is the state of the most recent harvest run.
type RunStatus struct {
	Running    bool                     `json:"running"`
	Runs       int                      `json:"runs"`
	StartedAt  *time.Time               `json:"started_at,omitempty"`
	FinishedAt *time.Time               `json:"finished_at,omitempty"`
	Feeds      []*downloader.FeedReport `json:"feeds"`
}

// StatusStore keeps the last run's reports for the ops endpoint. It is written
// by the harvest goroutine and read by HTTP handlers.
type StatusStore struct {
	mu     sync.RWMutex
	status RunStatus
}

func NewStatusStore() *StatusStore {
	return &StatusStore{status: RunStatus{Feeds: []*downloader.FeedReport{}}}
}

// Begin marks a run as started.
func (s *StatusStore) Begin(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Running = true
	s.status.StartedAt = &now
}

// Finish records the reports of the run that just ended.
func (s *StatusStore) Finish(now time.Time, reports []*downloader.FeedReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Running = false
	s.status.Runs++
	s.status.FinishedAt = &now
	s.status.Feeds = reports
}

// Snapshot returns a copy of the current status.
func (s *StatusStore) Snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.Feeds = append([]*downloader.FeedReport(nil), s.status.Feeds...)

	return st
}
