package storage

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// JobStore keeps async verification jobs in memory.
// Uploaded photos are processed in RAM only and zeroed after use.
// Jobs are removed once they are older than the TTL.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.VerificationJob
	ttl  time.Duration
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewJobStore creates a job store and starts its cleanup loop
func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &JobStore{
		jobs: make(map[string]*domain.VerificationJob),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// GenerateJobID creates a random job ID
func GenerateJobID() string {
	return uuid.NewString()
}

// Create registers a new pending job
func (s *JobStore) Create() *domain.VerificationJob {
	job := &domain.VerificationJob{
		JobID:     GenerateJobID(),
		Status:    domain.JobPending,
		CreatedAt: s.now().UTC(),
	}
	s.StoreJob(job)
	return job
}

// StoreJob stores a job
func (s *JobStore) StoreJob(job *domain.VerificationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
}

// GetJob returns a copy of the job so callers never race the worker
func (s *JobStore) GetJob(jobID string) *domain.VerificationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// UpdateJob applies update to an existing job
func (s *JobStore) UpdateJob(jobID string, update func(*domain.VerificationJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		update(job)
	}
}

// DeleteJob removes a job
func (s *JobStore) DeleteJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Len returns the number of stored jobs
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close stops the cleanup loop
func (s *JobStore) Close() {
	s.once.Do(func() { close(s.done) })
}

// ZeroBytes overwrites a byte slice with zeros so photo data does not
// linger in memory.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Digest returns the hex BLAKE2b-256 digest of an uploaded image. Only the
// digest outlives the request.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *JobStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *JobStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
