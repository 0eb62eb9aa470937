package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"shortform-pipeline/constant"
	"shortform-pipeline/dto"
	"shortform-pipeline/provider"
)

var canonicalStages = []constant.JobStatus{
	constant.JobStatusValidating,
	constant.JobStatusScriptGeneration,
	constant.JobStatusSceneDecomposition,
	constant.JobStatusCharacterGeneration,
	constant.JobStatusVoiceSynthesis,
	constant.JobStatusSubtitleGeneration,
	constant.JobStatusRendering,
	constant.JobStatusFinalizing,
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t)
	cases := []dto.SubmitRequest{
		{Prompt: "", Style: "anime", Duration: 30, Platform: "youtube"},
		{Prompt: "hi", Style: "watercolor", Duration: 30, Platform: "youtube"},
		{Prompt: "hi", Style: "anime", Duration: 45, Platform: "youtube"},
		{Prompt: "hi", Style: "anime", Duration: 30, Platform: "myspace"},
	}
	for _, req := range cases {
		_, err := env.orch.Submit(context.Background(), req)
		if err == nil {
			t.Fatalf("request %+v accepted", req)
		}
		if Classify(err) != ClassValidation {
			t.Fatalf("request %+v rejected with %s, want %s", req, Classify(err), ClassValidation)
		}
	}
	if len(env.publisher.messages) != 0 {
		t.Fatalf("invalid requests enqueued %d messages", len(env.publisher.messages))
	}
}

func TestSubmitEnqueuesJob(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.orch.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(env.publisher.messages) != 1 || env.publisher.messages[0].JobId != id {
		t.Fatalf("expected one queued message for %s, got %+v", id, env.publisher.messages)
	}
	job, err := env.repo.FindJobById(context.Background(), id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusReceived {
		t.Fatalf("new job status %s, want %s", job.Status, constant.JobStatusReceived)
	}
	if job.Quality != constant.QualityMedium {
		t.Fatalf("default quality %s, want medium", job.Quality)
	}
}

func TestProcessHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := submitAndProcess(ctx, env, validSubmit())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	job, err := env.repo.FindJobById(ctx, id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusCompleted {
		t.Fatalf("job finished as %s (%s: %s)", job.Status, job.ErrorClass, job.ErrorMessage)
	}
	if job.Progress != 100 {
		t.Fatalf("completed job progress %d", job.Progress)
	}

	if !reflect.DeepEqual(env.repo.stages, canonicalStages) {
		t.Fatalf("stage sequence %v, want %v", env.repo.stages, canonicalStages)
	}

	wantVideo := fmt.Sprintf("videos/%s/final.mp4", id)
	if job.VideoRef != wantVideo {
		t.Fatalf("video ref %q, want %q", job.VideoRef, wantVideo)
	}
	if job.PreviewRef == "" || job.ThumbnailRef == "" {
		t.Fatalf("missing preview/thumbnail refs: %+v", job)
	}
	if len(env.store.stored) != 3 {
		t.Fatalf("stored %d artifacts, want 3", len(env.store.stored))
	}

	// Two distinct speakers in the outline, one asset call each.
	if len(env.assets.calls) != 2 {
		t.Fatalf("generated %d characters, want 2", len(env.assets.calls))
	}
	// Three dialogue lines, one synth call each.
	if env.tts.calls != 3 {
		t.Fatalf("synthesized %d lines, want 3", env.tts.calls)
	}
	// One chain per scene plus the final composition chain.
	if len(env.engine.executed) != 4 {
		t.Fatalf("engine executed %d chains, want 4", len(env.engine.executed))
	}
}

func TestProcessCancellationAtStageBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.repo.cancelAfter = constant.JobStatusSceneDecomposition
	ctx := context.Background()

	id, err := submitAndProcess(ctx, env, validSubmit())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	job, err := env.repo.FindJobById(ctx, id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusCancelled {
		t.Fatalf("job finished as %s, want %s", job.Status, constant.JobStatusCancelled)
	}
	// The pipeline stopped before character generation.
	if len(env.assets.calls) != 0 {
		t.Fatalf("character service called %d times after cancellation", len(env.assets.calls))
	}
	if env.tts.calls != 0 {
		t.Fatalf("tts called %d times after cancellation", env.tts.calls)
	}
}

func TestProcessFailureRecordsStageAndClass(t *testing.T) {
	env := newTestEnv(t)
	env.script.failures = 100
	env.script.failWith = errors.Join(provider.ErrServiceUnavailable, errors.New("model offline"))
	ctx := context.Background()

	id, err := submitAndProcess(ctx, env, validSubmit())
	if err != nil {
		t.Fatalf("process should handle the failure, got %v", err)
	}

	job, err := env.repo.FindJobById(ctx, id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusFailed {
		t.Fatalf("job finished as %s, want %s", job.Status, constant.JobStatusFailed)
	}
	if job.FailedStage != string(constant.JobStatusScriptGeneration) {
		t.Fatalf("failed stage %q", job.FailedStage)
	}
	if job.ErrorClass != string(ClassTransient) {
		t.Fatalf("error class %q, want %s", job.ErrorClass, ClassTransient)
	}
	if job.RetryCount != 3 {
		t.Fatalf("retry count %d, want 3", job.RetryCount)
	}

	status, err := env.orch.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.CurrentStage != string(constant.JobStatusScriptGeneration) {
		t.Fatalf("status current stage %q", status.CurrentStage)
	}
	if status.ErrorClass != string(ClassTransient) || status.ErrorMessage == "" {
		t.Fatalf("status error %q / %q", status.ErrorClass, status.ErrorMessage)
	}
}

func TestProcessTransientFailureRecovers(t *testing.T) {
	env := newTestEnv(t)
	env.script.failures = 2
	env.script.failWith = errors.Join(provider.ErrServiceUnavailable, errors.New("model busy"))
	ctx := context.Background()

	id, err := submitAndProcess(ctx, env, validSubmit())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	job, err := env.repo.FindJobById(ctx, id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusCompleted {
		t.Fatalf("job finished as %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.RetryCount != 2 {
		t.Fatalf("retry count %d, want 2", job.RetryCount)
	}
}

func TestProcessSkipsNonPendingJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := submitAndProcess(ctx, env, validSubmit())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if env.script.calls != 1 {
		t.Fatalf("script called %d times, want 1", env.script.calls)
	}

	// Redelivery of the same message is a no-op.
	if err := env.orch.Process(ctx, dto.JobMessage{JobId: id}); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if env.script.calls != 1 {
		t.Fatalf("redelivered message reran the pipeline: %d script calls", env.script.calls)
	}
}

func TestCancelBeforeProcessing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.orch.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.orch.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := env.orch.Process(ctx, dto.JobMessage{JobId: id}); err != nil {
		t.Fatalf("process: %v", err)
	}

	job, err := env.repo.FindJobById(ctx, id)
	if err != nil {
		t.Fatalf("find job: %v", err)
	}
	if job.Status != constant.JobStatusCancelled {
		t.Fatalf("job finished as %s, want %s", job.Status, constant.JobStatusCancelled)
	}
	if env.script.calls != 0 {
		t.Fatalf("cancelled job still generated a script")
	}
}
