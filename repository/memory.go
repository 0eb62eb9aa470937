package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

var ErrJobNotFound = errors.New("job not found")

// memoryRepo is the in-memory JobRepository used by tests and local runs
// without Postgres.
type memoryRepo struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entities.Job
}

func NewMemoryRepo() JobRepository {
	return &memoryRepo{jobs: make(map[uuid.UUID]*entities.Job)}
}

func (r *memoryRepo) CreateJob(_ context.Context, job *entities.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memoryRepo) FindJobById(_ context.Context, id uuid.UUID) (*entities.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memoryRepo) UpdateStage(_ context.Context, id uuid.UUID, status constant.JobStatus, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() || constant.StageIndex(status) < constant.StageIndex(job.Status) {
		return ErrIllegalTransition
	}
	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) AddRetries(_ context.Context, id uuid.UUID, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.RetryCount += n
	return nil
}

func (r *memoryRepo) MarkFailed(_ context.Context, id uuid.UUID, stage, errClass, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now()
	job.Status = constant.JobStatusFailed
	job.FailedStage = stage
	job.ErrorClass = errClass
	job.ErrorMessage = message
	job.CompletedAt = &now
	return nil
}

func (r *memoryRepo) MarkCancelled(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now()
	job.Status = constant.JobStatusCancelled
	job.CompletedAt = &now
	return nil
}

func (r *memoryRepo) MarkCompleted(_ context.Context, id uuid.UUID, videoRef, previewRef, thumbnailRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now()
	job.Status = constant.JobStatusCompleted
	job.Progress = 100
	job.VideoRef = videoRef
	job.PreviewRef = previewRef
	job.ThumbnailRef = thumbnailRef
	job.CompletedAt = &now
	return nil
}

func (r *memoryRepo) RequestCancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.CancelRequested = true
	return nil
}

func (r *memoryRepo) CancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	return job.CancelRequested, nil
}
