package entities

// SubtitleCue is one burned-in caption. Start is in elapsed job time, not
// scene-relative time.
type SubtitleCue struct {
	SceneID  string  `json:"scene_id"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Style    string  `json:"style,omitempty"`
}
