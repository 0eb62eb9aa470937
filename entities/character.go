package entities

import "shortform-pipeline/constant"

// CharacterAsset is generated once per distinct speaker id and reused verbatim
// by every scene that references the character. Appearance and Voice never
// vary between scenes of the same job.
type CharacterAsset struct {
	ID          string             `json:"id"`
	Appearance  string             `json:"appearance"`
	ImageRef    string             `json:"image_ref"`
	Voice       VoiceDescriptor    `json:"voice"`
	Expressions []constant.Emotion `json:"expressions"`
	Motions     []string           `json:"motions"`
}

type VoiceDescriptor struct {
	VoiceID string  `json:"voice_id"`
	Pitch   float64 `json:"pitch"`
	Speed   float64 `json:"speed"`
}
