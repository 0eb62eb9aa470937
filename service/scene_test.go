package service

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

func testComposer() SceneComposer {
	return SceneComposer{MinDuration: 3, MaxDuration: 15, Tolerance: 5}
}

func TestComposeEmptyOutline(t *testing.T) {
	_, err := testComposer().Compose(nil, 30)
	if err == nil {
		t.Fatal("expected error for empty outline")
	}
	if Classify(err) != ClassValidation {
		t.Fatalf("expected ValidationError, got %s", Classify(err))
	}
}

func TestComposeDeterministic(t *testing.T) {
	c := testComposer()
	first, err := c.Compose(outlineFixture(), 30)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	second, err := c.Compose(outlineFixture(), 30)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same outline produced different scene lists")
	}
}

func TestComposeDurationWithinTolerance(t *testing.T) {
	c := testComposer()
	scenes, err := c.Compose(outlineFixture(), 30)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	sum := 0.0
	for _, s := range scenes {
		sum += s.Duration
		if s.Duration < c.MinDuration || s.Duration > c.MaxDuration {
			t.Fatalf("scene %s duration %.2f outside [%.0f, %.0f]", s.ID, s.Duration, c.MinDuration, c.MaxDuration)
		}
	}
	if diff := sum - 30; diff > c.Tolerance || diff < -c.Tolerance {
		t.Fatalf("total duration %.2f not within %.0fs of target 30", sum, c.Tolerance)
	}
}

func TestComposeSplitsLongScene(t *testing.T) {
	c := testComposer()
	lines := []entities.DialogueLine{
		{ID: "l0", SpeakerID: "a", Text: "The city never sleeps at night", Emotion: constant.EmotionNeutral},
		{ID: "l1", SpeakerID: "b", Text: "But tonight feels different somehow", Emotion: constant.EmotionNeutral},
		{ID: "l2", SpeakerID: "a", Text: "Something is moving in the shadows", Emotion: constant.EmotionNeutral},
		{ID: "l3", SpeakerID: "b", Text: "We should not be out here", Emotion: constant.EmotionNeutral},
	}
	outline := []entities.SceneOutline{{Description: "A long chase through the city.", Duration: 40, Dialogue: lines}}

	scenes, err := c.Compose(outline, 40)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(scenes) < 2 {
		t.Fatalf("expected the 40s scene to split, got %d scene(s)", len(scenes))
	}

	// Every dialogue line survives the split whole, exactly once.
	seen := make(map[string]int)
	for _, s := range scenes {
		if s.Duration > c.MaxDuration+1e-9 {
			t.Fatalf("scene %s duration %.2f exceeds max %.0f", s.ID, s.Duration, c.MaxDuration)
		}
		for _, l := range s.Dialogue {
			seen[l.ID]++
		}
	}
	for _, l := range lines {
		if seen[l.ID] != 1 {
			t.Fatalf("line %s appears %d times after split, want 1", l.ID, seen[l.ID])
		}
	}
}

func TestComposeDialogueTiming(t *testing.T) {
	scenes, err := testComposer().Compose(outlineFixture(), 30)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, s := range scenes {
		cursor := 0.0
		for _, l := range s.Dialogue {
			if l.Timing.Start < cursor-1e-9 {
				t.Fatalf("scene %s line %s overlaps the previous line", s.ID, l.ID)
			}
			end := l.Timing.Start + l.Timing.Duration
			if end > s.Duration+1e-9 {
				t.Fatalf("scene %s line %s ends at %.2f past scene duration %.2f", s.ID, l.ID, end, s.Duration)
			}
			cursor = end
		}
	}
}

func TestComposeSceneIdentity(t *testing.T) {
	scenes, err := testComposer().Compose(outlineFixture(), 30)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for i, s := range scenes {
		if s.Order != i {
			t.Fatalf("scene %d has order %d", i, s.Order)
		}
		if !strings.HasPrefix(s.ID, "scene-") {
			t.Fatalf("scene %d has id %q", i, s.ID)
		}
	}
	last := scenes[len(scenes)-1]
	if last.Transition.Type != constant.TransitionCut {
		t.Fatalf("last scene transition is %s, want cut", last.Transition.Type)
	}
}

func TestAssignBackground(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"A quiet forest with morning fog.", "nature"},
		{"Tall trees beside the river.", "nature"},
		{"A busy street downtown.", "city"},
		{"Streets empty after the rain.", "city"},
		{"Inside a small kitchen.", "indoor"},
		{"A dream drifting through the void.", "abstract"},
		{"Two friends talking.", "outdoor"},
	}
	for _, tc := range cases {
		if got := assignBackground(tc.description).Type; got != tc.want {
			t.Errorf("assignBackground(%q) = %s, want %s", tc.description, got, tc.want)
		}
	}
}

func TestComposeErrorIsValidation(t *testing.T) {
	_, err := testComposer().Compose([]entities.SceneOutline{}, 15)
	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if pe.Class != ClassValidation {
		t.Fatalf("expected %s, got %s", ClassValidation, pe.Class)
	}
}
