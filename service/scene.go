package service

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// SceneComposer turns a raw scene outline into the ordered SceneDescriptor
// list. The split is a deterministic greedy pass: outline scenes that exceed
// the max duration are split on dialogue or sentence boundaries with the
// duration redistributed proportionally to text length, and the last scene
// absorbs whatever remainder keeps the total within tolerance of the target.
type SceneComposer struct {
	MinDuration float64
	MaxDuration float64
	Tolerance   float64
}

const secondsPerWord = 0.4

func (c SceneComposer) Compose(outline []entities.SceneOutline, targetDuration float64) ([]entities.SceneDescriptor, error) {
	if len(outline) == 0 {
		return nil, NewValidationError("scene outline is empty")
	}

	var scenes []entities.SceneDescriptor
	for _, o := range outline {
		d := o.Duration
		if d <= 0 {
			d = targetDuration / float64(len(outline))
		}
		if d <= c.MaxDuration {
			scenes = append(scenes, c.buildScene(o.Description, clampF(d, c.MinDuration, c.MaxDuration), o.Dialogue))
			continue
		}
		scenes = append(scenes, c.split(o, d)...)
	}

	for i := range scenes {
		scenes[i].ID = fmt.Sprintf("scene-%d", i)
		scenes[i].Order = i
		c.layoutDialogue(&scenes[i])
	}

	c.reconcileDuration(scenes, targetDuration)

	// Last scene ends the video, so no transition window.
	if n := len(scenes); n > 0 {
		scenes[n-1].Transition = entities.Transition{Type: constant.TransitionCut}
	}
	return scenes, nil
}

// split breaks an over-long outline scene into parts that respect the max
// duration, never cutting a dialogue line across a boundary.
func (c SceneComposer) split(o entities.SceneOutline, total float64) []entities.SceneDescriptor {
	parts := int(math.Ceil(total / c.MaxDuration))
	if parts < 2 {
		parts = 2
	}

	if len(o.Dialogue) > 0 {
		groups := groupByLength(o.Dialogue, parts)
		totalLen := 0
		for _, l := range o.Dialogue {
			totalLen += len(l.Text)
		}
		var out []entities.SceneDescriptor
		for _, g := range groups {
			if len(g) == 0 {
				continue
			}
			groupLen := 0
			for _, l := range g {
				groupLen += len(l.Text)
			}
			d := total * float64(groupLen) / float64(totalLen)
			out = append(out, c.buildScene(o.Description, clampF(d, c.MinDuration, c.MaxDuration), g))
		}
		return out
	}

	sentences := splitSentences(o.Description)
	groups := groupStringsByLength(sentences, parts)
	totalLen := len(strings.Join(sentences, ""))
	if totalLen == 0 {
		totalLen = 1
	}
	var out []entities.SceneDescriptor
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		desc := strings.Join(g, " ")
		d := total * float64(len(strings.Join(g, ""))) / float64(totalLen)
		out = append(out, c.buildScene(desc, clampF(d, c.MinDuration, c.MaxDuration), nil))
	}
	return out
}

func (c SceneComposer) buildScene(description string, duration float64, dialogue []entities.DialogueLine) entities.SceneDescriptor {
	scene := entities.SceneDescriptor{
		Duration:    duration,
		Description: description,
		Background:  assignBackground(description),
		Camera:      entities.CameraDescriptor{Zoom: 1},
		Dialogue:    append([]entities.DialogueLine(nil), dialogue...),
		Transition:  entities.Transition{Type: constant.TransitionFade, Duration: 0.5},
	}

	seen := make(map[string]bool)
	for _, l := range dialogue {
		if l.SpeakerID == "" || seen[l.SpeakerID] {
			continue
		}
		seen[l.SpeakerID] = true
		scene.Characters = append(scene.Characters, entities.CharacterPlacement{
			CharacterID: l.SpeakerID,
			X:           0.2 + 0.6*float64(len(scene.Characters)),
			Y:           0.7,
			Scale:       1,
		})
	}
	return scene
}

// layoutDialogue assigns sequential timings so start+duration never exceeds
// the scene duration. Lines with no duration get a word-count estimate;
// if the laid-out dialogue runs past the scene, line durations are
// compressed proportionally.
func (c SceneComposer) layoutDialogue(scene *entities.SceneDescriptor) {
	if len(scene.Dialogue) == 0 {
		return
	}

	cursor := 0.0
	for i := range scene.Dialogue {
		l := &scene.Dialogue[i]
		if l.Timing.Duration <= 0 {
			l.Timing.Duration = math.Max(1, float64(len(strings.Fields(l.Text)))*secondsPerWord)
		}
		if l.Timing.PauseAfter < 0 {
			l.Timing.PauseAfter = 0
		}
		l.Timing.Start = cursor
		cursor += l.Timing.Duration + l.Timing.PauseAfter
	}

	if cursor > scene.Duration {
		if cursor <= c.MaxDuration {
			scene.Duration = cursor
			return
		}
		scene.Duration = c.MaxDuration
		scale := scene.Duration / cursor
		cursor = 0
		for i := range scene.Dialogue {
			l := &scene.Dialogue[i]
			l.Timing.Duration *= scale
			l.Timing.PauseAfter *= scale
			l.Timing.Start = cursor
			cursor += l.Timing.Duration + l.Timing.PauseAfter
		}
	}
}

// reconcileDuration nudges the last scene so the total matches the target,
// bounded by the scene duration limits and the dialogue already laid out.
func (c SceneComposer) reconcileDuration(scenes []entities.SceneDescriptor, target float64) {
	sum := 0.0
	for _, s := range scenes {
		sum += s.Duration
	}
	diff := target - sum
	if math.Abs(diff) < 1e-9 || len(scenes) == 0 {
		return
	}
	last := &scenes[len(scenes)-1]
	floor := c.MinDuration
	if n := len(last.Dialogue); n > 0 {
		end := last.Dialogue[n-1].Timing.Start + last.Dialogue[n-1].Timing.Duration
		if end > floor {
			floor = end
		}
	}
	last.Duration = clampF(last.Duration+diff, floor, c.MaxDuration)
}

// assignBackground picks a background type by keyword when the outline gives
// no explicit one. Keywords match whole words so "street" never triggers the
// "tree" branch.
func assignBackground(description string) entities.BackgroundDescriptor {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[w] = true
	}

	typ := "outdoor"
	switch {
	case hasAnyWord(words, "forest", "tree", "trees", "mountain", "river", "nature", "beach"):
		typ = "nature"
	case hasAnyWord(words, "city", "street", "streets", "building", "buildings", "traffic", "downtown"):
		typ = "city"
	case hasAnyWord(words, "room", "office", "house", "kitchen", "indoor", "inside"):
		typ = "indoor"
	case hasAnyWord(words, "space", "dream", "abstract", "void", "future"):
		typ = "abstract"
	}
	return entities.BackgroundDescriptor{Type: typ, Description: description}
}

func hasAnyWord(words map[string]bool, keys ...string) bool {
	for _, k := range keys {
		if words[k] {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// groupByLength distributes dialogue lines into parts groups with
// approximately equal total text length, preserving order.
func groupByLength(lines []entities.DialogueLine, parts int) [][]entities.DialogueLine {
	totalLen := 0
	for _, l := range lines {
		totalLen += len(l.Text)
	}
	perPart := float64(totalLen) / float64(parts)

	groups := make([][]entities.DialogueLine, 0, parts)
	var current []entities.DialogueLine
	acc := 0
	for _, l := range lines {
		current = append(current, l)
		acc += len(l.Text)
		if float64(acc) >= perPart && len(groups) < parts-1 {
			groups = append(groups, current)
			current = nil
			acc = 0
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func groupStringsByLength(sentences []string, parts int) [][]string {
	totalLen := 0
	for _, s := range sentences {
		totalLen += len(s)
	}
	perPart := float64(totalLen) / float64(parts)

	groups := make([][]string, 0, parts)
	var current []string
	acc := 0
	for _, s := range sentences {
		current = append(current, s)
		acc += len(s)
		if float64(acc) >= perPart && len(groups) < parts-1 {
			groups = append(groups, current)
			current = nil
			acc = 0
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
