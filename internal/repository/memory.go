package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// single-process development runs where Postgres is not available; state is
// lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*PaystubJob
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*PaystubJob)}
}

// Create inserts or resets a job record.
func (m *MemoryStore) Create(_ context.Context, job *PaystubJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	job.Status = StatusUploaded
	job.ReportKey = nil
	job.Message = ""
	job.CreatedAt = now
	job.UpdatedAt = now
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

// Get returns a copy of the job so callers cannot mutate stored state.
func (m *MemoryStore) Get(_ context.Context, id string) (*PaystubJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// MarkProcessing records the submission transition and the delivery address.
func (m *MemoryStore) MarkProcessing(_ context.Context, id, recipient string) error {
	return m.update(id, func(job *PaystubJob) {
		job.Status = StatusProcessing
		job.Recipient = recipient
		job.Message = ""
	})
}

// MarkFailed records a terminal pipeline failure.
func (m *MemoryStore) MarkFailed(_ context.Context, id, message string) error {
	return m.update(id, func(job *PaystubJob) {
		job.Status = StatusFailed
		job.Message = message
	})
}

// MarkCompleted records a fully successful run.
func (m *MemoryStore) MarkCompleted(_ context.Context, id, reportKey string) error {
	return m.update(id, func(job *PaystubJob) {
		job.Status = StatusCompleted
		job.ReportKey = &reportKey
		job.Message = ""
	})
}

// MarkCompletedWithErrors records a run whose report exists but was not
// delivered.
func (m *MemoryStore) MarkCompletedWithErrors(_ context.Context, id, reportKey, message string) error {
	return m.update(id, func(job *PaystubJob) {
		job.Status = StatusCompletedWithErrors
		job.ReportKey = &reportKey
		job.Message = message
	})
}

func (m *MemoryStore) update(id string, apply func(*PaystubJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	apply(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}
