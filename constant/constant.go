package constant

type JobStatus string

const (
	JobStatusReceived            JobStatus = "RECEIVED"
	JobStatusValidating          JobStatus = "VALIDATING"
	JobStatusScriptGeneration    JobStatus = "SCRIPT_GENERATION"
	JobStatusSceneDecomposition  JobStatus = "SCENE_DECOMPOSITION"
	JobStatusCharacterGeneration JobStatus = "CHARACTER_GENERATION"
	JobStatusVoiceSynthesis      JobStatus = "VOICE_SYNTHESIS"
	JobStatusSubtitleGeneration  JobStatus = "SUBTITLE_GENERATION"
	JobStatusRendering           JobStatus = "RENDERING"
	JobStatusFinalizing          JobStatus = "FINALIZING"
	JobStatusCompleted           JobStatus = "COMPLETED"
	JobStatusFailed              JobStatus = "FAILED"
	JobStatusCancelled           JobStatus = "CANCELLED"
)

// StageOrder is the canonical forward path of the job state machine.
// Failed and Cancelled are reachable from any non-terminal status and are
// deliberately absent here.
var StageOrder = []JobStatus{
	JobStatusReceived,
	JobStatusValidating,
	JobStatusScriptGeneration,
	JobStatusSceneDecomposition,
	JobStatusCharacterGeneration,
	JobStatusVoiceSynthesis,
	JobStatusSubtitleGeneration,
	JobStatusRendering,
	JobStatusFinalizing,
	JobStatusCompleted,
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// StageIndex returns the position of s on the canonical path, or -1 for
// Failed/Cancelled/unknown.
func StageIndex(s JobStatus) int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

type Style string

const (
	StyleRealistic Style = "realistic"
	StyleAnime     Style = "anime"
	StyleCartoon   Style = "cartoon"
	StyleAnimation Style = "animation"
)

var AllowedStyles = map[Style]bool{
	StyleRealistic: true,
	StyleAnime:     true,
	StyleCartoon:   true,
	StyleAnimation: true,
}

type Platform string

const (
	PlatformYoutube   Platform = "youtube"
	PlatformTiktok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Target output resolution per platform, width x height.
var PlatformResolutions = map[Platform][2]int{
	PlatformYoutube:   {1920, 1080},
	PlatformTiktok:    {1080, 1920},
	PlatformInstagram: {1080, 1080},
}

type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

var AllowedDurations = map[int]bool{15: true, 30: true, 60: true}

type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionFearful   Emotion = "fearful"
)

type TransitionType string

const (
	TransitionCut   TransitionType = "cut"
	TransitionFade  TransitionType = "fade"
	TransitionSlide TransitionType = "slide"
	TransitionZoom  TransitionType = "zoom"
)

type RenderUnitStatus string

const (
	RenderUnitPending    RenderUnitStatus = "PENDING"
	RenderUnitProcessing RenderUnitStatus = "PROCESSING"
	RenderUnitCompleted  RenderUnitStatus = "COMPLETED"
	RenderUnitFailed     RenderUnitStatus = "FAILED"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
