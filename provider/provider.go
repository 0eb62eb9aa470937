// Package provider defines the contracts for the external generative
// services the pipeline depends on, plus their HTTP and local
// implementations. The ML internals are out of scope; each interface is the
// full extent of what the pipeline assumes about them.
package provider

import (
	"context"
	"errors"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// ErrServiceUnavailable marks a transient provider failure (network error,
// timeout, rate limit, 5xx). Callers retry errors carrying this sentinel.
var ErrServiceUnavailable = errors.New("service unavailable")

// ScriptResult is the script service output: a narrative script plus a raw
// scene outline for decomposition.
type ScriptResult struct {
	Script  string
	Outline []entities.SceneOutline
}

type ScriptService interface {
	Generate(ctx context.Context, prompt string, style constant.Style, targetDuration int) (*ScriptResult, error)
}

type AssetService interface {
	GenerateCharacter(ctx context.Context, characterID string, style constant.Style) (*entities.CharacterAsset, error)
}

// SpeechResult is one synthesized dialogue line. LipSync is sampled at the
// configured frame rate over the audio duration.
type SpeechResult struct {
	AudioRef string
	Duration float64
	LipSync  []float64
}

type TTSService interface {
	Synthesize(ctx context.Context, text string, voice entities.VoiceDescriptor, emotion constant.Emotion) (*SpeechResult, error)
}

// MediaEngine executes a validated command chain. Output artifacts are the
// refs declared on the chain's commands; the engine reports only success or
// failure.
type MediaEngine interface {
	Execute(ctx context.Context, chain *entities.CommandChain) error
}
