package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shortform-pipeline/config"
	"shortform-pipeline/constant"
	"shortform-pipeline/dto"
	"shortform-pipeline/entities"
	"shortform-pipeline/provider"
	"shortform-pipeline/repository"

	"github.com/google/uuid"
)

func testPipelineConfig() config.Pipeline {
	return config.Pipeline{
		MinSceneDuration:    3,
		MaxSceneDuration:    15,
		DurationTolerance:   5,
		MaxRetries:          3,
		BaseDelay:           time.Millisecond,
		StageTimeout:        5 * time.Second,
		RenderWorkers:       4,
		TTSConcurrency:      5,
		ExternalConcurrency: 5,
		MusicVolume:         0.3,
		FrameRate:           30,
		FallbackVoiceID:     "neutral-01",
		FallbackLineSeconds: 2,
	}
}

type fakeScript struct {
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	result   *provider.ScriptResult
}

func (f *fakeScript) Generate(context.Context, string, constant.Style, int) (*provider.ScriptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	return f.result, nil
}

type fakeAssets struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeAssets) GenerateCharacter(_ context.Context, id string, _ constant.Style) (*entities.CharacterAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	return &entities.CharacterAsset{
		ID:         id,
		Appearance: "appearance-" + id,
		ImageRef:   "chars/" + id + ".png",
		Voice:      entities.VoiceDescriptor{VoiceID: "voice-" + id, Pitch: 1, Speed: 1},
	}, nil
}

type fakeTTS struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	failText    string
}

func (f *fakeTTS) Synthesize(_ context.Context, text string, _ entities.VoiceDescriptor, _ constant.Emotion) (*provider.SpeechResult, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.failText != "" && text == f.failText {
		return nil, errors.Join(provider.ErrServiceUnavailable, errors.New("tts overloaded"))
	}
	return &provider.SpeechResult{
		AudioRef: fmt.Sprintf("audio/%d.wav", len(text)),
		Duration: float64(len(text)) * 0.05,
		LipSync:  []float64{0.1, 0.5, 0.2},
	}, nil
}

type fakeEngine struct {
	mu         sync.Mutex
	executed   []*entities.CommandChain
	failScenes map[string]int // scene id -> remaining failures
}

func (f *fakeEngine) Execute(_ context.Context, chain *entities.CommandChain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, chain)
	id := sceneIDOf(chain)
	if remaining, ok := f.failScenes[id]; ok && remaining != 0 {
		if remaining > 0 {
			f.failScenes[id] = remaining - 1
		}
		return errors.New("engine crashed")
	}
	return nil
}

type fakeStore struct {
	mu     sync.Mutex
	stored map[string]string
}

func (f *fakeStore) Store(_ context.Context, localRef, objectKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = make(map[string]string)
	}
	f.stored[objectKey] = localRef
	return objectKey, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []dto.JobMessage
}

func (f *fakePublisher) PublishJob(_ context.Context, msg dto.JobMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

// recordingRepo wraps the in-memory repository and records the stage
// sequence. When cancelAfter is set, a cancellation request lands right
// after that stage starts, as if the user raced the pipeline.
type recordingRepo struct {
	repository.JobRepository
	mu          sync.Mutex
	stages      []constant.JobStatus
	cancelAfter constant.JobStatus
}

func (r *recordingRepo) UpdateStage(ctx context.Context, id uuid.UUID, status constant.JobStatus, progress int) error {
	if err := r.JobRepository.UpdateStage(ctx, id, status, progress); err != nil {
		return err
	}
	r.mu.Lock()
	r.stages = append(r.stages, status)
	r.mu.Unlock()
	if status == r.cancelAfter {
		return r.JobRepository.RequestCancel(ctx, id)
	}
	return nil
}

func outlineFixture() []entities.SceneOutline {
	return []entities.SceneOutline{
		{
			Description: "A bright city street at dawn.",
			Duration:    10,
			Dialogue: []entities.DialogueLine{
				{ID: "l0", SpeakerID: "narrator", Text: "The future of AI begins here", Emotion: constant.EmotionNeutral},
			},
		},
		{
			Description: "Inside a research lab full of screens.",
			Duration:    10,
			Dialogue: []entities.DialogueLine{
				{ID: "l1", SpeakerID: "scientist", Text: "Machines are learning to imagine", Emotion: constant.EmotionHappy},
			},
		},
		{
			Description: "A quiet forest with morning fog.",
			Duration:    10,
			Dialogue: []entities.DialogueLine{
				{ID: "l2", SpeakerID: "narrator", Text: "And the world is watching closely", Emotion: constant.EmotionNeutral},
			},
		},
	}
}

type testEnv struct {
	orch      *Orchestrator
	repo      *recordingRepo
	script    *fakeScript
	assets    *fakeAssets
	tts       *fakeTTS
	engine    *fakeEngine
	store     *fakeStore
	publisher *fakePublisher
}

func newTestEnv(t interface{ TempDir() string }) *testEnv {
	repo := &recordingRepo{JobRepository: repository.NewMemoryRepo()}
	script := &fakeScript{result: &provider.ScriptResult{Script: "script text", Outline: outlineFixture()}}
	assets := &fakeAssets{}
	tts := &fakeTTS{}
	engine := &fakeEngine{}
	store := &fakeStore{}
	publisher := &fakePublisher{}

	orch := NewOrchestrator(OrchestratorDeps{
		Repo:      repo,
		Script:    script,
		Assets:    assets,
		TTS:       tts,
		Engine:    engine,
		Store:     store,
		Publisher: publisher,
		Notifier:  nil,
		WorkDir:   t.TempDir(),
	}, testPipelineConfig())

	return &testEnv{
		orch:      orch,
		repo:      repo,
		script:    script,
		assets:    assets,
		tts:       tts,
		engine:    engine,
		store:     store,
		publisher: publisher,
	}
}

func submitAndProcess(ctx context.Context, env *testEnv, req dto.SubmitRequest) (uuid.UUID, error) {
	id, err := env.orch.Submit(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	return id, env.orch.Process(ctx, dto.JobMessage{JobId: id})
}

func validSubmit() dto.SubmitRequest {
	return dto.SubmitRequest{
		Prompt:   "AI 기술의 미래",
		Style:    string(constant.StyleAnimation),
		Duration: 60,
		Platform: string(constant.PlatformYoutube),
		UserId:   "user-1",
	}
}
