package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
	"github.com/mediscan/mediscan-backend/internal/verification/processor"
	"github.com/mediscan/mediscan-backend/internal/verification/storage"
	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/httputil"
	"github.com/mediscan/mediscan-backend/pkg/i18n"
	"github.com/mediscan/mediscan-backend/pkg/messaging"
)

// StartImageVerification accepts uploaded package photos and verifies them
// in the background. The job is returned immediately so the caller can poll.
// Uploads no processor accepts are dropped; upload bytes are zeroed once
// processed.
func (s *Service) StartImageVerification(ctx context.Context, uploads []domain.ImageUpload) (*domain.VerificationJob, error) {
	if err := s.checkImageCount(len(uploads)); err != nil {
		for _, u := range uploads {
			storage.ZeroBytes(u.Data)
		}
		return nil, err
	}
	if s.jobs == nil {
		return nil, errors.ServiceUnavailable("async verification is not configured")
	}

	accepted := make([]domain.ImageUpload, 0, len(uploads))
	chains := make([][]processor.Processor, 0, len(uploads))
	for _, u := range uploads {
		procs := s.processors.FindProcessors(u)
		if len(procs) == 0 {
			s.log.Warn().
				Int("image_index", u.Index).
				Str("filename", u.Filename).
				Str("content_type", u.ContentType).
				Msg("no processor accepts upload, skipping")
			storage.ZeroBytes(u.Data)
			continue
		}
		accepted = append(accepted, u)
		chains = append(chains, procs)
	}
	if len(accepted) == 0 {
		return nil, errors.UnsupportedMedia()
	}

	digests := make([]string, len(accepted))
	for i, u := range accepted {
		digests[i] = storage.Digest(u.Data)
	}

	job := s.jobs.Create()

	// the request context ends with the response; keep only what the
	// verdict and its events need
	bgCtx := i18n.WithLocale(context.Background(), i18n.GetLocaleFromContext(ctx))
	bgCtx = messaging.WithCorrelationID(bgCtx, messaging.CorrelationID(ctx))
	bgCtx = httputil.WithClientID(bgCtx, httputil.GetClientID(ctx))

	go s.processAsync(bgCtx, job.JobID, accepted, chains, digests)

	return s.jobs.GetJob(job.JobID), nil
}

// processAsync runs every upload through its processors in parallel, then
// verifies whatever evidence was recovered.
func (s *Service) processAsync(ctx context.Context, jobID string, uploads []domain.ImageUpload, chains [][]processor.Processor, digests []string) {
	if s.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ProcessTimeout)
		defer cancel()
	}

	s.jobs.UpdateJob(jobID, func(j *domain.VerificationJob) {
		j.Status = domain.JobProcessing
	})

	evidence := make([]*domain.ImageEvidence, len(uploads))
	failures := make([]error, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	for i := range uploads {
		i := i
		g.Go(func() error {
			evidence[i], failures[i] = s.processUpload(gctx, jobID, uploads[i], chains[i])
			storage.ZeroBytes(uploads[i].Data)
			return nil
		})
	}
	_ = g.Wait()

	images := make([]domain.ImageEvidence, 0, len(uploads))
	kept := make([]string, 0, len(uploads))
	var lastErr error
	for i, ev := range evidence {
		if ev == nil {
			lastErr = failures[i]
			continue
		}
		images = append(images, *ev)
		kept = append(kept, digests[i])
	}

	if len(images) == 0 {
		msg := "no image could be processed"
		if lastErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, lastErr)
		}
		s.failJob(jobID, msg)
		s.log.Error().Err(lastErr).Str("job_id", jobID).Msg("all images failed processing")
		return
	}

	v, err := s.verify(ctx, images, kept)
	if err != nil {
		s.failJob(jobID, err.Error())
		s.log.Error().Err(err).Str("job_id", jobID).Msg("verification failed")
		return
	}

	s.jobs.UpdateJob(jobID, func(j *domain.VerificationJob) {
		j.Status = domain.JobCompleted
		j.Result = v
	})
	s.metrics.jobs.WithLabelValues(string(domain.JobCompleted)).Inc()

	s.log.Info().
		Str("job_id", jobID).
		Str("verification_id", v.ID).
		Int("images", len(images)).
		Int("skipped", len(uploads)-len(images)).
		Msg("image verification completed")
}

// processUpload tries each processor in order; if one fails, the next one tries
func (s *Service) processUpload(ctx context.Context, jobID string, upload domain.ImageUpload, procs []processor.Processor) (*domain.ImageEvidence, error) {
	var lastErr error
	for _, proc := range procs {
		started := time.Now()
		ev, err := proc.Process(ctx, upload)
		if err == nil && ev != nil {
			if ev.Kind == "" {
				ev.Kind = upload.Kind
			}
			if ev.Processor == "" {
				ev.Processor = proc.Name()
			}
			if ev.ProcessingTimeMs == 0 {
				ev.ProcessingTimeMs = time.Since(started).Milliseconds()
			}
			s.log.Debug().
				Str("job_id", jobID).
				Int("image_index", upload.Index).
				Str("processor", proc.Name()).
				Int("barcodes", len(ev.Barcodes)).
				Msg("processor succeeded")
			return ev, nil
		}
		if err == nil {
			err = fmt.Errorf("processor %s returned no evidence", proc.Name())
		}
		lastErr = err
		s.metrics.processorFailures.WithLabelValues(proc.Name()).Inc()
		s.log.Warn().Err(err).
			Str("job_id", jobID).
			Int("image_index", upload.Index).
			Str("processor", proc.Name()).
			Msg("processor failed, trying next")
	}
	return nil, lastErr
}

func (s *Service) failJob(jobID, msg string) {
	s.jobs.UpdateJob(jobID, func(j *domain.VerificationJob) {
		j.Status = domain.JobFailed
		j.Error = msg
	})
	s.metrics.jobs.WithLabelValues(string(domain.JobFailed)).Inc()
}

// GetJob returns a job by ID
func (s *Service) GetJob(jobID string) (*domain.VerificationJob, error) {
	if s.jobs == nil {
		return nil, errors.NotFoundWithKey("job")
	}
	job := s.jobs.GetJob(jobID)
	if job == nil {
		return nil, errors.NotFoundWithKey("job")
	}
	return job, nil
}
