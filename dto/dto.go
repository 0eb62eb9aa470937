package dto

import "github.com/google/uuid"

// JobMessage is the queue payload published at submission and consumed by the
// pipeline worker.
type JobMessage struct {
	JobId uuid.UUID `json:"jobId"`
}

type SubmitRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Duration int    `json:"duration"`
	Platform string `json:"platform"`
	Quality  string `json:"quality,omitempty"`
	UserId   string `json:"userId"`
}

type SubmitResponse struct {
	JobId string `json:"jobId"`
}

type StatusResponse struct {
	Status       string `json:"status"`
	CurrentStage string `json:"currentStage"`
	Progress     int    `json:"progress"`
	ErrorClass   string `json:"errorClass,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	VideoRef     string `json:"videoRef,omitempty"`
	PreviewRef   string `json:"previewRef,omitempty"`
	ThumbnailRef string `json:"thumbnailRef,omitempty"`
}

// JobEvent is pushed on the job's SSE topic at every stage transition and on
// terminal states.
type JobEvent struct {
	JobId    string `json:"jobId"`
	Status   string `json:"status"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}
