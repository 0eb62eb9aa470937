package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// ErrIllegalTransition reports an attempt to move a job backwards on the
// canonical stage path or to mutate a terminal job.
var ErrIllegalTransition = errors.New("illegal job status transition")

// JobRepository is the durable job store. Jobs are mutated only by their
// owning orchestration task; status reads are snapshots.
type JobRepository interface {
	CreateJob(ctx context.Context, job *entities.Job) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error)
	UpdateStage(ctx context.Context, id uuid.UUID, status constant.JobStatus, progress int) error
	AddRetries(ctx context.Context, id uuid.UUID, n int) error
	MarkFailed(ctx context.Context, id uuid.UUID, stage, errClass, message string) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, videoRef, previewRef, thumbnailRef string) error
	RequestCancel(ctx context.Context, id uuid.UUID) error
	CancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) JobRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) CreateJob(ctx context.Context, job *entities.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.db.WithContext(ctx).First(job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repo) UpdateStage(ctx context.Context, id uuid.UUID, status constant.JobStatus, progress int) error {
	job, err := r.FindJobById(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() || constant.StageIndex(status) < constant.StageIndex(job.Status) {
		return ErrIllegalTransition
	}
	job.Status = status
	job.Progress = progress
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *repo) AddRetries(ctx context.Context, id uuid.UUID, n int) error {
	return r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + ?", n)).Error
}

func (r *repo) MarkFailed(ctx context.Context, id uuid.UUID, stage, errClass, message string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.JobStatusFailed,
			"failed_stage":  stage,
			"error_class":   errClass,
			"error_message": message,
			"completed_at":  &now,
		}).Error
}

func (r *repo) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       constant.JobStatusCancelled,
			"completed_at": &now,
		}).Error
}

func (r *repo) MarkCompleted(ctx context.Context, id uuid.UUID, videoRef, previewRef, thumbnailRef string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        constant.JobStatusCompleted,
			"progress":      100,
			"video_ref":     videoRef,
			"preview_ref":   previewRef,
			"thumbnail_ref": thumbnailRef,
			"completed_at":  &now,
		}).Error
}

func (r *repo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error
}

func (r *repo) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	job, err := r.FindJobById(ctx, id)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}
