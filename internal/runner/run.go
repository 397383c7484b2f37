// Package runner owns the lifecycle of comparison runs: an in-memory store
// with TTL eviction, a bounded worker pool, and latency stats. The core
// comparison itself is synchronous; the runner exists so a service can field
// several runs at once, each with its own registry.
package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twbtools/twbdiff/internal/registry"
)

// Status represents the state of a comparison run.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusParsing    Status = "parsing"
	StatusExtracting Status = "extracting"
	StatusComparing  Status = "comparing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Run tracks one old/new workbook comparison.
type Run struct {
	mu sync.Mutex

	ID string `json:"run_id"`

	Status      Status `json:"status"`
	OldFilename string `json:"old_filename"`
	NewFilename string `json:"new_filename"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	oldData []byte
	newData []byte
	result  *registry.Registry
	errors  []string
}

// NewRun builds a queued run holding both revision payloads.
func NewRun(oldName, newName string, oldData, newData []byte) *Run {
	now := time.Now()
	return &Run{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		OldFilename: oldName,
		NewFilename: newName,
		CreatedAt:   now,
		UpdatedAt:   now,
		oldData:     oldData,
		newData:     newData,
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.UpdatedAt = time.Now()
}

// AddError records a non-fatal problem encountered during the run.
func (r *Run) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
	r.UpdatedAt = time.Now()
}

// SetResult attaches the populated registry. Payload bytes are released;
// they are not needed once the comparison completes.
func (r *Run) SetResult(reg *registry.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = reg
	r.oldData = nil
	r.newData = nil
	r.UpdatedAt = time.Now()
}

func (r *Run) payloads() (old, new []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oldData, r.newData
}

// Snapshot is a read-only, JSON-safe copy of run state. Result is nil until
// the run completes.
type Snapshot struct {
	ID          string                  `json:"run_id"`
	Status      Status                  `json:"status"`
	OldFilename string                  `json:"old_filename"`
	NewFilename string                  `json:"new_filename"`
	Errors      []string                `json:"errors"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Counts      map[registry.Status]int `json:"counts,omitempty"`
	Result      *registry.Registry      `json:"result,omitempty"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.errors
	if errs == nil {
		errs = []string{}
	}
	snap := Snapshot{
		ID:          r.ID,
		Status:      r.Status,
		OldFilename: r.OldFilename,
		NewFilename: r.NewFilename,
		Errors:      errs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.result != nil {
		snap.Result = r.result
		snap.Counts = r.result.Counts()
	}
	return snap
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		run.mu.Lock()
		stale := now.Sub(run.UpdatedAt) > s.ttl
		run.mu.Unlock()
		if stale {
			delete(s.runs, id)
		}
	}
}
