package provider

import (
	"context"
	"fmt"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// TTSClient calls the external text-to-speech service.
type TTSClient struct {
	httpClient
}

func NewTTSClient(opts Options) *TTSClient {
	return &TTSClient{httpClient: newHTTPClient(opts)}
}

type ttsRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voiceId"`
	Pitch   float64 `json:"pitch"`
	Speed   float64 `json:"speed"`
	Emotion string  `json:"emotion"`
}

type ttsResponse struct {
	AudioRef string    `json:"audioRef"`
	Duration float64   `json:"duration"`
	LipSync  []float64 `json:"lipSync"`
}

func (c *TTSClient) Synthesize(ctx context.Context, text string, voice entities.VoiceDescriptor, emotion constant.Emotion) (*SpeechResult, error) {
	var resp ttsResponse
	err := c.post(ctx, "/v1/synthesize", ttsRequest{
		Text:    text,
		VoiceID: voice.VoiceID,
		Pitch:   voice.Pitch,
		Speed:   voice.Speed,
		Emotion: string(emotion),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AudioRef == "" || resp.Duration <= 0 {
		return nil, fmt.Errorf("tts service returned empty audio for line")
	}
	return &SpeechResult{
		AudioRef: resp.AudioRef,
		Duration: resp.Duration,
		LipSync:  resp.LipSync,
	}, nil
}
