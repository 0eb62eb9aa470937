package entities

import (
	"time"

	"github.com/google/uuid"

	"shortform-pipeline/constant"
)

type Job struct {
	ID              uuid.UUID          `json:"id"`
	UserID          string             `json:"user_id"`
	Prompt          string             `json:"prompt"`
	Style           constant.Style     `json:"style"`
	TargetDuration  int                `json:"target_duration"`
	Platform        constant.Platform  `json:"platform"`
	Quality         constant.Quality   `json:"quality"`
	Status          constant.JobStatus `json:"status"`
	Progress        int                `json:"progress"`
	CancelRequested bool               `json:"cancel_requested"`

	// Populated on failure only.
	FailedStage  string `json:"failed_stage,omitempty"`
	ErrorClass   string `json:"error_class,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`

	// Artifact object keys, populated on completion.
	VideoRef     string `json:"video_ref,omitempty"`
	PreviewRef   string `json:"preview_ref,omitempty"`
	ThumbnailRef string `json:"thumbnail_ref,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}
