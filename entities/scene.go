package entities

import "shortform-pipeline/constant"

// SceneDescriptor is one timed unit of the final video: a background, a
// camera, placed characters, dialogue, music and effects, plus the transition
// into the following scene. Order is a dense 0..N-1 index.
type SceneDescriptor struct {
	ID          string                `json:"id"`
	Order       int                   `json:"order"`
	Duration    float64               `json:"duration"`
	Description string                `json:"description"`
	Background  BackgroundDescriptor  `json:"background"`
	Camera      CameraDescriptor      `json:"camera"`
	Characters  []CharacterPlacement  `json:"characters"`
	Dialogue    []DialogueLine        `json:"dialogue"`
	MusicRef    string                `json:"music_ref,omitempty"`
	Effects     []string              `json:"effects,omitempty"`
	Transition  Transition            `json:"transition"`
}

type BackgroundDescriptor struct {
	Type        string `json:"type"` // indoor | outdoor | nature | city | abstract
	Description string `json:"description"`
}

type CameraDescriptor struct {
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Rotation  float64          `json:"rotation"`
	Zoom      float64          `json:"zoom"`
	Keyframes []MotionKeyframe `json:"keyframes,omitempty"`
}

// MotionKeyframe positions the camera at a moment within the scene, with At
// expressed in seconds from the scene start. Keyframes are kept ordered by At.
type MotionKeyframe struct {
	At       float64 `json:"at"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Zoom     float64 `json:"zoom"`
}

type CharacterPlacement struct {
	CharacterID string  `json:"character_id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
}

type DialogueLine struct {
	ID        string           `json:"id"`
	SpeakerID string           `json:"speaker_id"`
	Text      string           `json:"text"`
	Emotion   constant.Emotion `json:"emotion"`
	Timing    LineTiming       `json:"timing"`
}

// LineTiming is relative to the enclosing scene. Start+Duration never exceeds
// the scene duration.
type LineTiming struct {
	Start      float64 `json:"start"`
	Duration   float64 `json:"duration"`
	PauseAfter float64 `json:"pause_after"`
}

type Transition struct {
	Type     constant.TransitionType `json:"type"`
	Duration float64                 `json:"duration"`
}

// SceneOutline is the structured scene sketch returned by the script service
// before decomposition.
type SceneOutline struct {
	Description string         `json:"description"`
	Duration    float64        `json:"duration"`
	Dialogue    []DialogueLine `json:"dialogue,omitempty"`
}
