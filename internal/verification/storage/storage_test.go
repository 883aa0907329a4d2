package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

func TestJobStore_Lifecycle(t *testing.T) {
	s := NewJobStore(time.Minute)
	defer s.Close()

	job := s.Create()
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, domain.JobPending, job.Status)

	s.UpdateJob(job.JobID, func(j *domain.VerificationJob) {
		j.Status = domain.JobCompleted
		j.Result = &domain.Verification{ID: "v-1"}
	})

	got := s.GetJob(job.JobID)
	require.NotNil(t, got)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Equal(t, "v-1", got.Result.ID)

	// the returned job is a copy
	got.Status = domain.JobFailed
	assert.Equal(t, domain.JobCompleted, s.GetJob(job.JobID).Status)

	s.DeleteJob(job.JobID)
	assert.Nil(t, s.GetJob(job.JobID))
	assert.Equal(t, 0, s.Len())
}

func TestJobStore_UpdateUnknownJob(t *testing.T) {
	s := NewJobStore(time.Minute)
	defer s.Close()

	called := false
	s.UpdateJob("missing", func(*domain.VerificationJob) { called = true })
	assert.False(t, called)
}

func TestJobStore_Cleanup(t *testing.T) {
	s := NewJobStore(time.Hour)
	defer s.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.StoreJob(&domain.VerificationJob{JobID: "old", CreatedAt: now.Add(-2 * time.Hour)})
	s.StoreJob(&domain.VerificationJob{JobID: "fresh", CreatedAt: now.Add(-10 * time.Minute)})

	s.cleanup()

	assert.Nil(t, s.GetJob("old"))
	assert.NotNil(t, s.GetJob("fresh"))
}

func TestJobStore_ConcurrentAccess(t *testing.T) {
	s := NewJobStore(time.Minute)
	defer s.Close()

	job := s.Create()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UpdateJob(job.JobID, func(j *domain.VerificationJob) { j.Status = domain.JobProcessing })
		}()
		go func() {
			defer wg.Done()
			_ = s.GetJob(job.JobID)
		}()
	}
	wg.Wait()
	assert.Equal(t, domain.JobProcessing, s.GetJob(job.JobID).Status)
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	ZeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("front"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte("front")))
	assert.NotEqual(t, a, Digest([]byte("back")))
}
