// Package orders turns filtered commerce orders into validated mutation
// batches and dispatches them as asynchronous jobs with bounded concurrency.
package orders

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordermesh/tokengate/internal/errors"
)

// JobStatus is a job's lifecycle state. Jobs start Processing and make a
// single transition to Completed; there are no other states.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
)

// JobStats tracks per-item accounting. Total is fixed at creation;
// Succeeded and Failed only ever grow, and their sum reaches Total exactly
// when the job completes.
type JobStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// OrderResult records one successfully dispatched order.
type OrderResult struct {
	OrderID string                 `json:"orderId"`
	Result  map[string]interface{} `json:"result"`
}

// OrderError records one failed order with its reason.
type OrderError struct {
	OrderID string `json:"orderId"`
	Error   string `json:"error"`
}

// ItemError is a per-item resolution failure. These are business-rule
// mismatches, not fatal errors; the rest of the order still dispatches.
type ItemError struct {
	Code        errors.Code `json:"error"`
	ItemName    string      `json:"itemName"`
	ProductName string      `json:"productName"`
	Message     string      `json:"message"`
}

// InvalidOrder is an order rejected at intake: it never reaches the
// dispatch queue but stays visible on the job for the caller.
type InvalidOrder struct {
	OrderID string      `json:"orderId"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// Job is one accepted batch of order mutations.
type Job struct {
	ID        string         `json:"id"`
	Status    JobStatus      `json:"status"`
	Created   time.Time      `json:"created"`
	Completed time.Time      `json:"completed,omitempty"`
	Stats     JobStats       `json:"stats"`
	Results   []OrderResult  `json:"results"`
	Errors    []OrderError   `json:"errors"`
	Invalid   []InvalidOrder `json:"invalid"`
}

// JobStore is the in-memory job table. Jobs are never removed during the
// process lifetime; unbounded growth is an accepted limitation of the
// memory-only model.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create stores the job under a fresh identifier and returns it.
func (s *JobStore) Create(job *Job) string {
	id := uuid.NewString()
	job.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = job
	return id
}

// Get returns a snapshot of the job. Result slices are copied so callers
// never race with the dispatch workers.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Results = append([]OrderResult(nil), job.Results...)
	snapshot.Errors = append([]OrderError(nil), job.Errors...)
	snapshot.Invalid = append([]InvalidOrder(nil), job.Invalid...)
	return snapshot, true
}

// Update applies fn to the job under the write lock, the single entry point
// through which dispatch workers mutate job state. Unknown ids are a no-op
// returning false.
func (s *JobStore) Update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}
