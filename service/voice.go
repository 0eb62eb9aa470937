package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"shortform-pipeline/entities"
	"shortform-pipeline/provider"
)

// VoiceSynthesizer produces one AudioTrack per dialogue line. Lines are
// synthesized concurrently under a bounded cap, each with its own retry
// budget; a line that exhausts retries gets the configured fallback voice
// instead of failing the job.
type VoiceSynthesizer struct {
	TTS              provider.TTSService
	Concurrency      int
	Retry            RetryPolicy
	FallbackVoiceID  string
	FallbackDuration float64
}

func (v VoiceSynthesizer) Synthesize(ctx context.Context, scenes []entities.SceneDescriptor, assets map[string]*entities.CharacterAsset) ([]entities.AudioTrack, error) {
	type lineRef struct {
		line  entities.DialogueLine
		voice entities.VoiceDescriptor
	}
	var lines []lineRef
	for _, s := range scenes {
		for _, l := range s.Dialogue {
			voice := entities.VoiceDescriptor{VoiceID: v.FallbackVoiceID}
			if asset, ok := assets[l.SpeakerID]; ok {
				voice = asset.Voice
			}
			lines = append(lines, lineRef{line: l, voice: voice})
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	limit := v.Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	tracks := make([]entities.AudioTrack, len(lines))
	var wg sync.WaitGroup

	for i, lr := range lines {
		wg.Add(1)
		go func(i int, lr lineRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			tracks[i] = v.synthesizeLine(ctx, lr.line, lr.voice)
		}(i, lr)
	}
	wg.Wait()

	return tracks, nil
}

func (v VoiceSynthesizer) synthesizeLine(ctx context.Context, line entities.DialogueLine, voice entities.VoiceDescriptor) entities.AudioTrack {
	var result *provider.SpeechResult
	_, err := v.Retry.Do(ctx, "tts", func(ctx context.Context) error {
		r, err := v.TTS.Synthesize(ctx, line.Text, voice, line.Emotion)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dialogue_id", line.ID).Msg("tts exhausted retries, using fallback voice")
		return entities.AudioTrack{
			DialogueID: line.ID,
			AudioRef:   "fallback/" + v.FallbackVoiceID,
			Duration:   v.FallbackDuration,
			Fallback:   true,
		}
	}
	return entities.AudioTrack{
		DialogueID: line.ID,
		AudioRef:   result.AudioRef,
		Duration:   result.Duration,
		LipSync:    result.LipSync,
	}
}
