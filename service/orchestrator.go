package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shortform-pipeline/config"
	"shortform-pipeline/constant"
	"shortform-pipeline/dto"
	"shortform-pipeline/entities"
	"shortform-pipeline/provider"
	"shortform-pipeline/repository"
)

// JobPublisher enqueues accepted jobs for asynchronous processing.
type JobPublisher interface {
	PublishJob(ctx context.Context, msg dto.JobMessage) error
}

// Notifier pushes job events to subscribers. The SSE hub satisfies it.
type Notifier interface {
	Publish(topic string, msg []byte)
}

// Orchestrator drives the job state machine. A job is mutated only by the
// orchestration task that owns it; every stage call goes through the retry
// policy with a per-attempt timeout, and cancellation is observed at stage
// boundaries only.
type Orchestrator struct {
	repo      repository.JobRepository
	script    provider.ScriptService
	engine    provider.MediaEngine
	store     ArtifactStore
	publisher JobPublisher
	notifier  Notifier

	composer   SceneComposer
	characters CharacterGenerator
	voice      VoiceSynthesizer
	compositor Compositor
	scheduler  RenderScheduler
	retry      RetryPolicy

	stageTimeout time.Duration
	musicVolume  float64
	workDir      string
}

type OrchestratorDeps struct {
	Repo      repository.JobRepository
	Script    provider.ScriptService
	Assets    provider.AssetService
	TTS       provider.TTSService
	Engine    provider.MediaEngine
	Store     ArtifactStore
	Publisher JobPublisher
	Notifier  Notifier
	WorkDir   string
}

func NewOrchestrator(deps OrchestratorDeps, cfg config.Pipeline) *Orchestrator {
	return &Orchestrator{
		repo:      deps.Repo,
		script:    deps.Script,
		engine:    deps.Engine,
		store:     deps.Store,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		composer: SceneComposer{
			MinDuration: cfg.MinSceneDuration,
			MaxDuration: cfg.MaxSceneDuration,
			Tolerance:   cfg.DurationTolerance,
		},
		characters: CharacterGenerator{Assets: deps.Assets},
		voice: VoiceSynthesizer{
			TTS:              deps.TTS,
			Concurrency:      cfg.TTSConcurrency,
			Retry:            RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseDelay},
			FallbackVoiceID:  cfg.FallbackVoiceID,
			FallbackDuration: cfg.FallbackLineSeconds,
		},
		compositor: Compositor{MusicVolume: cfg.MusicVolume, FrameRate: cfg.FrameRate},
		scheduler: RenderScheduler{
			Engine:  deps.Engine,
			Workers: cfg.RenderWorkers,
			Retry:   RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseDelay},
		},
		retry:        RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseDelay},
		stageTimeout: cfg.StageTimeout,
		musicVolume:  cfg.MusicVolume,
		workDir:      deps.WorkDir,
	}
}

func validateRequest(req dto.SubmitRequest) error {
	if req.Prompt == "" {
		return NewValidationError("prompt is required")
	}
	if !constant.AllowedStyles[constant.Style(req.Style)] {
		return NewValidationError("unknown style %q", req.Style)
	}
	if !constant.AllowedDurations[req.Duration] {
		return NewValidationError("duration %d not in allowed set", req.Duration)
	}
	if _, ok := constant.PlatformResolutions[constant.Platform(req.Platform)]; !ok {
		return NewValidationError("unknown platform %q", req.Platform)
	}
	return nil
}

// Submit validates synchronously and accepts the job for asynchronous
// processing. Invalid input fails fast and creates no job.
func (o *Orchestrator) Submit(ctx context.Context, req dto.SubmitRequest) (uuid.UUID, error) {
	if err := validateRequest(req); err != nil {
		return uuid.Nil, err
	}

	quality := constant.Quality(req.Quality)
	if quality == "" {
		quality = constant.QualityMedium
	}

	job := &entities.Job{
		ID:             uuid.New(),
		UserID:         req.UserId,
		Prompt:         req.Prompt,
		Style:          constant.Style(req.Style),
		TargetDuration: req.Duration,
		Platform:       constant.Platform(req.Platform),
		Quality:        quality,
		Status:         constant.JobStatusReceived,
		CreatedAt:      time.Now(),
	}
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, err
	}

	if err := o.publisher.PublishJob(ctx, dto.JobMessage{JobId: job.ID}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to enqueue job")
		return uuid.Nil, err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Msg("job accepted")
	return job.ID, nil
}

func (o *Orchestrator) GetStatus(ctx context.Context, id uuid.UUID) (*dto.StatusResponse, error) {
	job, err := o.repo.FindJobById(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.StatusResponse{
		Status:       string(job.Status),
		CurrentStage: string(job.Status),
		Progress:     job.Progress,
		ErrorClass:   job.ErrorClass,
		ErrorMessage: job.ErrorMessage,
		VideoRef:     job.VideoRef,
		PreviewRef:   job.PreviewRef,
		ThumbnailRef: job.ThumbnailRef,
	}
	if job.Status == constant.JobStatusFailed {
		resp.CurrentStage = job.FailedStage
	}
	return resp, nil
}

// Cancel requests cooperative cancellation. The job stops at the next stage
// boundary; the current stage's external calls run to completion and their
// results are discarded.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	return o.repo.RequestCancel(ctx, id)
}

// jobRun carries the intermediate outputs between stages of one job.
type jobRun struct {
	job       *entities.Job
	script    *provider.ScriptResult
	scenes    []entities.SceneDescriptor
	assets    map[string]*entities.CharacterAsset
	tracks    []entities.AudioTrack
	cues      []entities.SubtitleCue
	srtRef    string
	units     []entities.RenderUnit
	artifacts Artifacts
}

type stage struct {
	status   constant.JobStatus
	progress int
	fn       func(ctx context.Context, run *jobRun) error
}

// Process runs the whole pipeline for one queued job. Terminal outcomes are
// recorded on the job; a nil return means the message was handled, not that
// the job succeeded.
func (o *Orchestrator) Process(ctx context.Context, msg dto.JobMessage) error {
	job, err := o.repo.FindJobById(ctx, msg.JobId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", msg.JobId.String()).Msg("failed to find job by id")
		return err
	}
	if job.Status != constant.JobStatusReceived {
		zerolog.Ctx(ctx).Info().Str("job_id", msg.JobId.String()).Str("status", string(job.Status)).Msg("job is not pending, skipping")
		return nil
	}

	run := &jobRun{job: job}
	stages := []stage{
		{constant.JobStatusValidating, 5, o.stageValidate},
		{constant.JobStatusScriptGeneration, 15, o.stageScript},
		{constant.JobStatusSceneDecomposition, 25, o.stageScenes},
		{constant.JobStatusCharacterGeneration, 40, o.stageCharacters},
		{constant.JobStatusVoiceSynthesis, 55, o.stageVoice},
		{constant.JobStatusSubtitleGeneration, 65, o.stageSubtitles},
		{constant.JobStatusRendering, 85, o.stageRender},
		{constant.JobStatusFinalizing, 95, o.stageFinalize},
	}

	for _, st := range stages {
		cancelled, err := o.repo.CancelRequested(ctx, job.ID)
		if err != nil {
			return err
		}
		if cancelled {
			zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Str("stage", string(st.status)).Msg("cancellation observed at stage boundary")
			if err := o.repo.MarkCancelled(ctx, job.ID); err != nil {
				return err
			}
			o.notify(ctx, job.ID, constant.JobStatusCancelled, "", 0, "")
			return nil
		}

		if err := o.repo.UpdateStage(ctx, job.ID, st.status, st.progress); err != nil {
			return err
		}
		o.notify(ctx, job.ID, st.status, string(st.status), st.progress, "")
		zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Str("stage", string(st.status)).Msg("stage started")

		retries, stageErr := o.retry.Do(ctx, string(st.status), func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
			defer cancel()
			return st.fn(attemptCtx, run)
		})
		if retries > 0 {
			if err := o.repo.AddRetries(ctx, job.ID, retries); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("failed to record retries")
			}
		}
		if stageErr != nil {
			class := Classify(stageErr)
			zerolog.Ctx(ctx).Error().Err(stageErr).
				Str("job_id", job.ID.String()).
				Str("stage", string(st.status)).
				Str("error_class", string(class)).
				Int("retries", retries).
				Msg("stage failed")
			// Partial artifacts are left in place for diagnostics.
			if err := o.repo.MarkFailed(ctx, job.ID, string(st.status), string(class), stageErr.Error()); err != nil {
				return err
			}
			o.notify(ctx, job.ID, constant.JobStatusFailed, string(st.status), 0, string(class))
			return nil
		}
	}

	if err := o.repo.MarkCompleted(ctx, job.ID, run.artifacts.Video, run.artifacts.Preview, run.artifacts.Thumbnail); err != nil {
		return err
	}
	o.notify(ctx, job.ID, constant.JobStatusCompleted, "", 100, "")
	zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Str("video_ref", run.artifacts.Video).Msg("job completed")
	return nil
}

func (o *Orchestrator) stageValidate(_ context.Context, run *jobRun) error {
	return validateRequest(dto.SubmitRequest{
		Prompt:   run.job.Prompt,
		Style:    string(run.job.Style),
		Duration: run.job.TargetDuration,
		Platform: string(run.job.Platform),
	})
}

func (o *Orchestrator) stageScript(ctx context.Context, run *jobRun) error {
	result, err := o.script.Generate(ctx, run.job.Prompt, run.job.Style, run.job.TargetDuration)
	if err != nil {
		return err
	}
	run.script = result
	return nil
}

func (o *Orchestrator) stageScenes(_ context.Context, run *jobRun) error {
	scenes, err := o.composer.Compose(run.script.Outline, float64(run.job.TargetDuration))
	if err != nil {
		return err
	}
	run.scenes = scenes
	return nil
}

func (o *Orchestrator) stageCharacters(ctx context.Context, run *jobRun) error {
	scenes, err := o.characters.EnsureContinuity(ctx, run.scenes, o.composer.MinDuration)
	if err != nil {
		return err
	}
	run.scenes = scenes

	assets, err := o.characters.Generate(ctx, run.scenes, run.job.Style)
	if err != nil {
		return err
	}
	run.assets = assets
	return nil
}

func (o *Orchestrator) stageVoice(ctx context.Context, run *jobRun) error {
	tracks, err := o.voice.Synthesize(ctx, run.scenes, run.assets)
	if err != nil {
		return err
	}
	run.tracks = tracks
	return nil
}

func (o *Orchestrator) stageSubtitles(_ context.Context, run *jobRun) error {
	run.cues = BuildCues(run.scenes)
	if len(run.cues) == 0 {
		return nil
	}
	ref := fmt.Sprintf("jobs/%s/subtitles.srt", run.job.ID)
	path := filepath.Join(o.workDir, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(RenderSRT(run.cues)), 0644); err != nil {
		return err
	}
	run.srtRef = ref
	return nil
}

func (o *Orchestrator) stageRender(ctx context.Context, run *jobRun) error {
	jobID := run.job.ID.String()

	chains := make([]*entities.CommandChain, len(run.scenes))
	clipRefs := make([]string, len(run.scenes))
	external := o.externalRefs(run)
	for i, s := range run.scenes {
		chains[i] = o.compositor.SceneChain(jobID, s, run.assets)
		clipRefs[i] = o.compositor.SceneClipRef(jobID, s.ID)
		if err := chains[i].Validate(external); err != nil {
			return err
		}
	}

	units, err := o.scheduler.Render(ctx, jobID, chains, clipRefs)
	run.units = units
	if err != nil {
		return err
	}

	var music *entities.MusicTrack
	for _, s := range run.scenes {
		if s.MusicRef != "" {
			music = &entities.MusicTrack{MusicRef: s.MusicRef, Volume: o.musicVolume, Loop: true}
			break
		}
	}

	chain, artifacts := o.compositor.FinalChain(jobID, run.scenes, run.tracks, music, run.srtRef, run.job.Platform, run.job.Quality)
	for _, ref := range clipRefs {
		external[ref] = true
	}
	if err := chain.Validate(external); err != nil {
		return err
	}
	if err := o.engine.Execute(ctx, chain); err != nil {
		return NewRenderError(err)
	}
	run.artifacts = artifacts
	return nil
}

// externalRefs lists chain inputs produced outside the media engine:
// generated assets, synthesized audio, music beds and the cue file.
func (o *Orchestrator) externalRefs(run *jobRun) map[string]bool {
	jobID := run.job.ID.String()
	external := make(map[string]bool)
	for _, s := range run.scenes {
		external[backgroundRef(jobID, s.ID)] = true
		if s.MusicRef != "" {
			external[s.MusicRef] = true
		}
		for _, p := range s.Characters {
			external[fmt.Sprintf("jobs/%s/assets/char-%s.png", jobID, p.CharacterID)] = true
		}
	}
	for _, a := range run.assets {
		if a.ImageRef != "" {
			external[a.ImageRef] = true
		}
	}
	for _, t := range run.tracks {
		external[t.AudioRef] = true
	}
	if run.srtRef != "" {
		external[run.srtRef] = true
	}
	return external
}

func (o *Orchestrator) stageFinalize(ctx context.Context, run *jobRun) error {
	jobID := run.job.ID.String()
	uploads := []struct {
		local string
		key   string
	}{
		{run.artifacts.Video, fmt.Sprintf("videos/%s/final.mp4", jobID)},
		{run.artifacts.Preview, fmt.Sprintf("videos/%s/preview.mp4", jobID)},
		{run.artifacts.Thumbnail, fmt.Sprintf("videos/%s/thumbnail.jpg", jobID)},
	}
	refs := make([]string, len(uploads))
	for i, u := range uploads {
		key, err := o.store.Store(ctx, u.local, u.key)
		if err != nil {
			return err
		}
		refs[i] = key
	}
	run.artifacts = Artifacts{Video: refs[0], Preview: refs[1], Thumbnail: refs[2]}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, id uuid.UUID, status constant.JobStatus, stageName string, progress int, errClass string) {
	if o.notifier == nil {
		return
	}
	event := dto.JobEvent{
		JobId:    id.String(),
		Status:   string(status),
		Stage:    stageName,
		Progress: progress,
		Error:    errClass,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to marshal job event")
		return
	}
	o.notifier.Publish(id.String(), payload)
}
