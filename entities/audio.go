package entities

// AudioTrack is the synthesized audio for one dialogue line. LipSync holds
// mouth-intensity samples aligned to the audio at the target frame rate.
type AudioTrack struct {
	DialogueID string    `json:"dialogue_id"`
	AudioRef   string    `json:"audio_ref"`
	Duration   float64   `json:"duration"`
	LipSync    []float64 `json:"lip_sync,omitempty"`
	Fallback   bool      `json:"fallback"`
}

type MusicTrack struct {
	MusicRef string  `json:"music_ref"`
	Volume   float64 `json:"volume"`
	Loop     bool    `json:"loop"`
}
