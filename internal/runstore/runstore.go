// Package runstore is the ledger of stage runs, one record per stage and date.
package runstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is the latest run of a stage for a date.
type Record struct {
	Stage      string          `json:"stage"`
	Date       string          `json:"date"`
	Status     string          `json:"status"`
	Attempt    int             `json:"attempt"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Total      int             `json:"total"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// Store persists run records.
type Store interface {
	// Save overwrites the record of (Stage, Date). Attempt is set by the store
	// when a run starts.
	Save(ctx context.Context, r *Record) error
	// Get returns nil when no run is recorded.
	Get(ctx context.Context, stage, date string) (*Record, error)
}

// MemoryStore keeps records in process. It ignores the TTL.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(r.Stage, r.Date)
	if r.Status == StatusRunning {
		r.Attempt = s.records[k].Attempt + 1
	}
	cp := *r
	s.records[k] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, stage, date string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key(stage, date)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func key(stage, date string) string {
	return stage + "/" + date
}
