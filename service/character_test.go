package service

import (
	"context"
	"testing"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

func dialogueScene(id string, order int, duration float64, lines ...entities.DialogueLine) entities.SceneDescriptor {
	return entities.SceneDescriptor{
		ID:       id,
		Order:    order,
		Duration: duration,
		Dialogue: lines,
	}
}

func TestGenerateOneCallPerSpeaker(t *testing.T) {
	assets := &fakeAssets{}
	g := CharacterGenerator{Assets: assets}

	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10,
			entities.DialogueLine{ID: "l0", SpeakerID: "narrator", Emotion: constant.EmotionNeutral},
			entities.DialogueLine{ID: "l1", SpeakerID: "scientist", Emotion: constant.EmotionNeutral}),
		dialogueScene("scene-1", 1, 10,
			entities.DialogueLine{ID: "l2", SpeakerID: "narrator", Emotion: constant.EmotionNeutral}),
	}

	got, err := g.Generate(context.Background(), scenes, constant.StyleAnime)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got))
	}
	for id, n := range assets.calls {
		if n != 1 {
			t.Fatalf("character %s generated %d times, want 1", id, n)
		}
	}
	// Scenes referencing the same character share the one generated asset.
	if got["narrator"].ImageRef != "chars/narrator.png" {
		t.Fatalf("unexpected image ref %q", got["narrator"].ImageRef)
	}
}

func TestEnsureContinuityNoViolations(t *testing.T) {
	g := CharacterGenerator{}
	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10, entities.DialogueLine{ID: "l0", SpeakerID: "a", Emotion: constant.EmotionNeutral}),
		dialogueScene("scene-1", 1, 10, entities.DialogueLine{ID: "l1", SpeakerID: "a", Emotion: constant.EmotionHappy}),
	}
	got, err := g.EnsureContinuity(context.Background(), scenes, 3)
	if err != nil {
		t.Fatalf("ensure continuity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected scenes untouched, got %d", len(got))
	}
}

func TestEnsureContinuityInsertsBridge(t *testing.T) {
	g := CharacterGenerator{}
	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10, entities.DialogueLine{ID: "l0", SpeakerID: "a", Emotion: constant.EmotionHappy}),
		dialogueScene("scene-1", 1, 10, entities.DialogueLine{ID: "l1", SpeakerID: "a", Emotion: constant.EmotionSad}),
	}

	got, err := g.EnsureContinuity(context.Background(), scenes, 3)
	if err != nil {
		t.Fatalf("ensure continuity: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected a bridging scene, got %d scenes", len(got))
	}

	bridge := got[1]
	if len(bridge.Dialogue) != 1 || bridge.Dialogue[0].Emotion != constant.EmotionNeutral {
		t.Fatalf("bridge scene should carry one neutral line, got %+v", bridge.Dialogue)
	}
	if bridge.Dialogue[0].SpeakerID != "a" {
		t.Fatalf("bridge scene is for character %q, want a", bridge.Dialogue[0].SpeakerID)
	}

	// IDs and order are dense again after insertion.
	for i, s := range got {
		if s.Order != i {
			t.Fatalf("scene %d has order %d after reindex", i, s.Order)
		}
	}

	// The donor scene funds the bridge, keeping the total stable.
	sum := 0.0
	for _, s := range got {
		sum += s.Duration
	}
	if sum != 20 {
		t.Fatalf("total duration %.2f after bridging, want 20", sum)
	}

	if violations := checkContinuity(got); len(violations) != 0 {
		t.Fatalf("violations remain after remediation: %+v", violations)
	}
}

func TestEnsureContinuityDonorKeepsDialogue(t *testing.T) {
	g := CharacterGenerator{}
	// The donor's line runs to 9.5s of its 10s, so only 0.5s is spare for
	// the bridge; shrinking past the line end would strand its audio and
	// cues in the next scene.
	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10, entities.DialogueLine{
			ID: "l0", SpeakerID: "a", Emotion: constant.EmotionHappy,
			Timing: entities.LineTiming{Start: 6.5, Duration: 3},
		}),
		dialogueScene("scene-1", 1, 10, entities.DialogueLine{
			ID: "l1", SpeakerID: "a", Emotion: constant.EmotionSad,
		}),
	}

	got, err := g.EnsureContinuity(context.Background(), scenes, 3)
	if err != nil {
		t.Fatalf("ensure continuity: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected a bridging scene, got %d scenes", len(got))
	}

	donor := got[0]
	if donor.Duration != 9.5 {
		t.Fatalf("donor duration %.2f, want 9.5 (floored at the line end)", donor.Duration)
	}
	for _, s := range got {
		for _, l := range s.Dialogue {
			if end := l.Timing.Start + l.Timing.Duration; end > s.Duration+1e-9 {
				t.Fatalf("scene %s (duration %.2f): line %s ends at %.2f past the scene duration", s.ID, s.Duration, l.ID, end)
			}
		}
	}
}

func TestEnsureContinuityUnrecoverable(t *testing.T) {
	g := CharacterGenerator{}
	// An emotion outside the transition table cannot be bridged through
	// neutral either.
	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10, entities.DialogueLine{ID: "l0", SpeakerID: "a", Emotion: constant.Emotion("ecstatic")}),
		dialogueScene("scene-1", 1, 10, entities.DialogueLine{ID: "l1", SpeakerID: "a", Emotion: constant.EmotionAngry}),
	}

	_, err := g.EnsureContinuity(context.Background(), scenes, 3)
	if err == nil {
		t.Fatal("expected a consistency error")
	}
	if Classify(err) != ClassConsistency {
		t.Fatalf("expected %s, got %s", ClassConsistency, Classify(err))
	}
}

func TestContinuityIgnoresIntraSceneJumps(t *testing.T) {
	// A disallowed pair inside one scene is the script's choice; only
	// cross-boundary pairs are checked.
	scenes := []entities.SceneDescriptor{
		dialogueScene("scene-0", 0, 10,
			entities.DialogueLine{ID: "l0", SpeakerID: "a", Emotion: constant.EmotionHappy},
			entities.DialogueLine{ID: "l1", SpeakerID: "a", Emotion: constant.EmotionSad}),
	}
	if violations := checkContinuity(scenes); len(violations) != 0 {
		t.Fatalf("intra-scene pair reported as violation: %+v", violations)
	}
}
