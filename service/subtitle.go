package service

import (
	"fmt"
	"strings"

	"shortform-pipeline/entities"
)

// BuildCues converts scene-relative dialogue timings into subtitle cues in
// elapsed job time.
func BuildCues(scenes []entities.SceneDescriptor) []entities.SubtitleCue {
	var cues []entities.SubtitleCue
	offset := 0.0
	for _, s := range scenes {
		for _, l := range s.Dialogue {
			if strings.TrimSpace(l.Text) == "" {
				continue
			}
			cues = append(cues, entities.SubtitleCue{
				SceneID:  s.ID,
				Text:     l.Text,
				Start:    offset + l.Timing.Start,
				Duration: l.Timing.Duration,
			})
		}
		offset += s.Duration
	}
	return cues
}

// RenderSRT renders cues as an SRT document for the burn-in step.
func RenderSRT(cues []entities.SubtitleCue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(c.Start), srtTimestamp(c.Start+c.Duration), c.Text)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
