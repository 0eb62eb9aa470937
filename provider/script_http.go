package provider

import (
	"context"
	"fmt"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// ScriptClient calls the external LLM script service.
type ScriptClient struct {
	httpClient
}

func NewScriptClient(opts Options) *ScriptClient {
	return &ScriptClient{httpClient: newHTTPClient(opts)}
}

type scriptRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Duration int    `json:"duration"`
}

type scriptResponse struct {
	Script string `json:"script"`
	Scenes []struct {
		Description string  `json:"description"`
		Duration    float64 `json:"duration"`
		Dialogue    []struct {
			SpeakerID string  `json:"speakerId"`
			Text      string  `json:"text"`
			Emotion   string  `json:"emotion"`
			Start     float64 `json:"start"`
			Duration  float64 `json:"duration"`
		} `json:"dialogue"`
	} `json:"scenes"`
}

func (c *ScriptClient) Generate(ctx context.Context, prompt string, style constant.Style, targetDuration int) (*ScriptResult, error) {
	var resp scriptResponse
	err := c.post(ctx, "/v1/script", scriptRequest{
		Prompt:   prompt,
		Style:    string(style),
		Duration: targetDuration,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Script == "" {
		return nil, fmt.Errorf("script service returned empty script")
	}

	outline := make([]entities.SceneOutline, 0, len(resp.Scenes))
	for i, s := range resp.Scenes {
		o := entities.SceneOutline{
			Description: s.Description,
			Duration:    s.Duration,
		}
		for j, d := range s.Dialogue {
			emotion := constant.Emotion(d.Emotion)
			if emotion == "" {
				emotion = constant.EmotionNeutral
			}
			o.Dialogue = append(o.Dialogue, entities.DialogueLine{
				ID:        fmt.Sprintf("line-%d-%d", i, j),
				SpeakerID: d.SpeakerID,
				Text:      d.Text,
				Emotion:   emotion,
				Timing:    entities.LineTiming{Start: d.Start, Duration: d.Duration},
			})
		}
		outline = append(outline, o)
	}

	return &ScriptResult{Script: resp.Script, Outline: outline}, nil
}
