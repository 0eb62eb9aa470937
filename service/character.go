package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
	"shortform-pipeline/provider"
)

// allowedEmotionTransitions is the adjacency table for consecutive dialogue
// emotions of the same character. A transition absent here needs a bridging
// scene.
var allowedEmotionTransitions = map[constant.Emotion][]constant.Emotion{
	constant.EmotionNeutral:   {constant.EmotionHappy, constant.EmotionSad, constant.EmotionSurprised, constant.EmotionAngry, constant.EmotionFearful},
	constant.EmotionHappy:     {constant.EmotionNeutral, constant.EmotionSurprised},
	constant.EmotionSad:       {constant.EmotionNeutral, constant.EmotionFearful},
	constant.EmotionAngry:     {constant.EmotionNeutral, constant.EmotionSad},
	constant.EmotionSurprised: {constant.EmotionNeutral, constant.EmotionHappy, constant.EmotionFearful},
	constant.EmotionFearful:   {constant.EmotionNeutral, constant.EmotionSad},
}

func emotionTransitionAllowed(from, to constant.Emotion) bool {
	if from == to {
		return true
	}
	for _, e := range allowedEmotionTransitions[from] {
		if e == to {
			return true
		}
	}
	return false
}

// CharacterGenerator produces one asset per distinct speaker and enforces
// the cross-scene consistency rule: an asset is generated once and reused
// verbatim by every scene referencing the character.
type CharacterGenerator struct {
	Assets provider.AssetService
}

// Generate resolves the distinct speaker ids across all scenes, issuing a
// single external call per id. Scene order determines the iteration order so
// repeated runs hit the service identically.
func (g CharacterGenerator) Generate(ctx context.Context, scenes []entities.SceneDescriptor, style constant.Style) (map[string]*entities.CharacterAsset, error) {
	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, s := range scenes {
		for _, l := range s.Dialogue {
			if l.SpeakerID == "" || seen[l.SpeakerID] {
				continue
			}
			seen[l.SpeakerID] = true
			ids = append(ids, l.SpeakerID)
		}
	}
	sort.Strings(ids)

	assets := make(map[string]*entities.CharacterAsset, len(ids))
	for _, id := range ids {
		asset, err := g.Assets.GenerateCharacter(ctx, id, style)
		if err != nil {
			return nil, err
		}
		assets[id] = asset
		zerolog.Ctx(ctx).Debug().Str("character_id", id).Msg("character asset generated")
	}
	return assets, nil
}

type emotionViolation struct {
	characterID string
	sceneIdx    int // index of the later scene of the offending pair
	from, to    constant.Emotion
}

// checkContinuity walks each character's dialogue emotions in scene order and
// reports every disallowed consecutive pair that crosses a scene boundary.
// Pairs inside one scene are the script's own doing and are left alone.
func checkContinuity(scenes []entities.SceneDescriptor) []emotionViolation {
	type last struct {
		emotion  constant.Emotion
		sceneIdx int
	}
	lastByChar := make(map[string]last)
	var violations []emotionViolation

	for i, s := range scenes {
		for _, l := range s.Dialogue {
			if l.SpeakerID == "" {
				continue
			}
			prev, ok := lastByChar[l.SpeakerID]
			if ok && prev.sceneIdx != i && !emotionTransitionAllowed(prev.emotion, l.Emotion) {
				violations = append(violations, emotionViolation{
					characterID: l.SpeakerID,
					sceneIdx:    i,
					from:        prev.emotion,
					to:          l.Emotion,
				})
			}
			lastByChar[l.SpeakerID] = last{emotion: l.Emotion, sceneIdx: i}
		}
	}
	return violations
}

// EnsureContinuity validates emotion continuity, inserting bridging scenes
// for violations in a single remediation pass. If the re-check still finds a
// disallowed transition, a ConsistencyError surfaces.
func (g CharacterGenerator) EnsureContinuity(ctx context.Context, scenes []entities.SceneDescriptor, minSceneDuration float64) ([]entities.SceneDescriptor, error) {
	violations := checkContinuity(scenes)
	if len(violations) == 0 {
		return scenes, nil
	}

	zerolog.Ctx(ctx).Info().Int("violations", len(violations)).Msg("inserting bridging scenes for emotion continuity")

	// Insert back to front so earlier indexes stay valid.
	for i := len(violations) - 1; i >= 0; i-- {
		v := violations[i]
		bridge := bridgingScene(v, minSceneDuration)

		// Keep the total duration stable: the scene before the bridge donates
		// what it can spare. The floor is the later of the minimum scene
		// duration and the end of the donor's laid-out dialogue, so lines
		// never outrun their scene.
		donor := &scenes[v.sceneIdx-1]
		floor := minSceneDuration
		if n := len(donor.Dialogue); n > 0 {
			if end := donor.Dialogue[n-1].Timing.Start + donor.Dialogue[n-1].Timing.Duration; end > floor {
				floor = end
			}
		}
		if spare := donor.Duration - floor; spare > 0 {
			donor.Duration -= math.Min(spare, bridge.Duration)
		}

		scenes = append(scenes[:v.sceneIdx], append([]entities.SceneDescriptor{bridge}, scenes[v.sceneIdx:]...)...)
	}

	for i := range scenes {
		scenes[i].ID = fmt.Sprintf("scene-%d", i)
		scenes[i].Order = i
	}

	if remaining := checkContinuity(scenes); len(remaining) > 0 {
		r := remaining[0]
		return nil, NewConsistencyError("emotion transition %s -> %s for character %s not remediable", r.from, r.to, r.characterID)
	}
	return scenes, nil
}

func bridgingScene(v emotionViolation, duration float64) entities.SceneDescriptor {
	return entities.SceneDescriptor{
		Duration:    duration,
		Description: fmt.Sprintf("%s pauses and composes themselves", v.characterID),
		Background:  entities.BackgroundDescriptor{Type: "abstract", Description: "soft transitional backdrop"},
		Camera:      entities.CameraDescriptor{Zoom: 1},
		Characters: []entities.CharacterPlacement{
			{CharacterID: v.characterID, X: 0.5, Y: 0.7, Scale: 1},
		},
		Dialogue: []entities.DialogueLine{
			{
				ID:        fmt.Sprintf("bridge-%s-%s-%s", v.characterID, v.from, v.to),
				SpeakerID: v.characterID,
				Emotion:   constant.EmotionNeutral,
				Timing:    entities.LineTiming{Start: 0, Duration: duration},
			},
		},
		Transition: entities.Transition{Type: constant.TransitionFade, Duration: 0.3},
	}
}
