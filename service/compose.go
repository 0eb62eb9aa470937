package service

import (
	"fmt"
	"strings"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
)

// Compositor builds the typed media-command chains: a per-scene chain (frame
// assembly, overlay, camera motion) executed by the render workers, and the
// final chain (concat, subtitle burn, audio mix, scale, encode) executed once
// per job.
type Compositor struct {
	MusicVolume float64
	FrameRate   int
}

// Artifacts are the output refs of the final chain.
type Artifacts struct {
	Video     string
	Preview   string
	Thumbnail string
}

func (c Compositor) SceneClipRef(jobID, sceneID string) string {
	return fmt.Sprintf("jobs/%s/scenes/%s/clip.mp4", jobID, sceneID)
}

func backgroundRef(jobID, sceneID string) string {
	return fmt.Sprintf("jobs/%s/assets/bg-%s.png", jobID, sceneID)
}

// SceneChain builds composition steps 1-3 for one scene. The chain's last
// output is always SceneClipRef(jobID, scene.ID).
func (c Compositor) SceneChain(jobID string, scene entities.SceneDescriptor, assets map[string]*entities.CharacterAsset) *entities.CommandChain {
	prefix := fmt.Sprintf("jobs/%s/scenes/%s/", jobID, scene.ID)
	base := prefix + "base.mp4"

	chain := &entities.CommandChain{JobID: jobID}
	chain.Commands = append(chain.Commands, entities.MediaCommand{
		Op:     entities.OpAssembleFrames,
		Inputs: []string{backgroundRef(jobID, scene.ID)},
		Output: base,
		Params: map[string]string{
			"duration":        fmt.Sprintf("%.3f", scene.Duration),
			"fps":             fmt.Sprintf("%d", c.FrameRate),
			"background_type": scene.Background.Type,
		},
	})

	current := base
	if len(scene.Characters) > 0 {
		inputs := []string{current}
		for _, p := range scene.Characters {
			ref := fmt.Sprintf("jobs/%s/assets/char-%s.png", jobID, p.CharacterID)
			if a, ok := assets[p.CharacterID]; ok && a.ImageRef != "" {
				ref = a.ImageRef
			}
			inputs = append(inputs, ref)
		}
		overlayOut := prefix + "overlay.mp4"
		chain.Commands = append(chain.Commands, entities.MediaCommand{
			Op:     entities.OpOverlay,
			Inputs: inputs,
			Output: overlayOut,
			Params: map[string]string{"filter": overlayFilter(scene.Characters)},
		})
		current = overlayOut
	}

	chain.Commands = append(chain.Commands, entities.MediaCommand{
		Op:     entities.OpCameraMotion,
		Inputs: []string{current},
		Output: c.SceneClipRef(jobID, scene.ID),
		Params: map[string]string{"filter": cameraFilter(scene.Camera, scene.Duration, c.FrameRate)},
	})
	return chain
}

// overlayFilter composites each character image onto the background clip at
// its normalized transform. The last label is always [vout].
func overlayFilter(placements []entities.CharacterPlacement) string {
	var b strings.Builder
	prev := "[0:v]"
	for i, p := range placements {
		scale := p.Scale
		if scale <= 0 {
			scale = 1
		}
		fmt.Fprintf(&b, "[%d:v]scale=iw*%.2f:-1[c%d];", i+1, 0.4*scale, i)
		label := fmt.Sprintf("[o%d]", i)
		if i == len(placements)-1 {
			label = "[vout]"
		}
		fmt.Fprintf(&b, "%s[c%d]overlay=x=W*%.2f-w/2:y=H*%.2f-h%s;", prev, i, p.X, p.Y, label)
		prev = label
	}
	return strings.TrimSuffix(b.String(), ";")
}

// cameraFilter derives a filter from the camera's motion keyframes. The
// formulas are illustrative defaults, parameterized rather than fixed; a
// static camera compiles to a null filter.
func cameraFilter(cam entities.CameraDescriptor, duration float64, fps int) string {
	start := entities.MotionKeyframe{X: cam.X, Y: cam.Y, Rotation: cam.Rotation, Zoom: cam.Zoom}
	end := start
	if n := len(cam.Keyframes); n > 0 {
		start = cam.Keyframes[0]
		end = cam.Keyframes[n-1]
	}
	if start.Zoom <= 0 {
		start.Zoom = 1
	}
	if end.Zoom <= 0 {
		end.Zoom = 1
	}

	var filters []string
	if start.Zoom != 1 || end.Zoom != 1 {
		frames := int(duration * float64(fps))
		if frames < 1 {
			frames = 1
		}
		filters = append(filters, fmt.Sprintf(
			"zoompan=z='%.3f+(%.3f-%.3f)*on/%d':d=1:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':fps=%d",
			start.Zoom, end.Zoom, start.Zoom, frames, fps))
	}
	if start.X != end.X || start.Y != end.Y {
		filters = append(filters, fmt.Sprintf(
			"crop=w=iw*0.8:h=ih*0.8:x='(iw-ow)*(%.3f+(%.3f-%.3f)*t/%.3f)':y='(ih-oh)*(%.3f+(%.3f-%.3f)*t/%.3f)'",
			start.X, end.X, start.X, duration, start.Y, end.Y, start.Y, duration))
	}
	if start.Rotation != end.Rotation {
		filters = append(filters, fmt.Sprintf(
			"rotate='%.4f+(%.4f-%.4f)*t/%.3f'",
			start.Rotation, end.Rotation, start.Rotation, duration))
	}
	if len(filters) == 0 {
		return "null"
	}
	return strings.Join(filters, ",")
}

// FinalChain builds composition steps 4-8: concat with transitions, subtitle
// burn-in, audio mix, platform scaling and the three encodes.
func (c Compositor) FinalChain(
	jobID string,
	scenes []entities.SceneDescriptor,
	tracks []entities.AudioTrack,
	music *entities.MusicTrack,
	srtRef string,
	platform constant.Platform,
	quality constant.Quality,
) (*entities.CommandChain, Artifacts) {
	prefix := fmt.Sprintf("jobs/%s/", jobID)
	chain := &entities.CommandChain{JobID: jobID}

	clips := make([]string, len(scenes))
	for i, s := range scenes {
		clips[i] = c.SceneClipRef(jobID, s.ID)
	}

	concatOut := prefix + "concat.mp4"
	concatCmd := entities.MediaCommand{
		Op:     entities.OpConcat,
		Inputs: clips,
		Output: concatOut,
		Params: map[string]string{},
	}
	if filter := transitionFilter(scenes); filter != "" {
		concatCmd.Params["filter"] = filter
	}
	chain.Commands = append(chain.Commands, concatCmd)
	current := concatOut

	if srtRef != "" {
		out := prefix + "subtitled.mp4"
		chain.Commands = append(chain.Commands, entities.MediaCommand{
			Op:     entities.OpBurnSubtitles,
			Inputs: []string{current, srtRef},
			Output: out,
		})
		current = out
	}

	if len(tracks) > 0 || music != nil {
		inputs := []string{current}
		for _, t := range tracks {
			inputs = append(inputs, t.AudioRef)
		}
		if music != nil {
			inputs = append(inputs, music.MusicRef)
		}
		out := prefix + "mixed.mp4"
		chain.Commands = append(chain.Commands, entities.MediaCommand{
			Op:     entities.OpMixAudio,
			Inputs: inputs,
			Output: out,
			Params: map[string]string{"filter": c.mixFilter(scenes, tracks, music)},
		})
		current = out
	}

	res := constant.PlatformResolutions[platform]
	scaledOut := prefix + "scaled.mp4"
	chain.Commands = append(chain.Commands, entities.MediaCommand{
		Op:     entities.OpScalePad,
		Inputs: []string{current},
		Output: scaledOut,
		Params: map[string]string{
			"width":  fmt.Sprintf("%d", res[0]),
			"height": fmt.Sprintf("%d", res[1]),
		},
	})

	artifacts := Artifacts{
		Video:     prefix + "final.mp4",
		Preview:   prefix + "preview.mp4",
		Thumbnail: prefix + "thumbnail.jpg",
	}
	chain.Commands = append(chain.Commands,
		entities.MediaCommand{
			Op:     entities.OpEncode,
			Inputs: []string{scaledOut},
			Output: artifacts.Video,
			Params: map[string]string{"crf": qualityCRF(quality)},
		},
		entities.MediaCommand{
			Op:     entities.OpEncode,
			Inputs: []string{scaledOut},
			Output: artifacts.Preview,
			Params: map[string]string{"crf": "32", "scale": "640:-2"},
		},
		entities.MediaCommand{
			Op:     entities.OpEncode,
			Inputs: []string{scaledOut},
			Output: artifacts.Thumbnail,
			Params: map[string]string{"frames": "1"},
		},
	)
	return chain, artifacts
}

// transitionFilter builds the xfade chain for the declared transitions. An
// all-cut sequence returns "" and falls back to plain concatenation. For a
// fade, the crossfade window is the transition duration and the offset is the
// accumulated predecessor duration minus the window.
func transitionFilter(scenes []entities.SceneDescriptor) string {
	if len(scenes) < 2 {
		return ""
	}
	allCut := true
	for _, s := range scenes[:len(scenes)-1] {
		if s.Transition.Type != constant.TransitionCut {
			allCut = false
			break
		}
	}
	if allCut {
		return ""
	}

	var b strings.Builder
	prev := "[0]"
	offset := 0.0
	for i := 0; i < len(scenes)-1; i++ {
		t := scenes[i].Transition
		dur := t.Duration
		if t.Type == constant.TransitionCut || dur <= 0 {
			dur = 0.05
		}
		offset += scenes[i].Duration - dur
		label := fmt.Sprintf("[x%d]", i+1)
		if i == len(scenes)-2 {
			label = "[vout]"
		}
		fmt.Fprintf(&b, "%s[%d]xfade=transition=%s:duration=%.2f:offset=%.2f%s;",
			prev, i+1, xfadeName(t.Type), dur, offset, label)
		prev = label
	}
	return strings.TrimSuffix(b.String(), ";")
}

func xfadeName(t constant.TransitionType) string {
	switch t {
	case constant.TransitionSlide:
		return "slideleft"
	case constant.TransitionZoom:
		return "zoomin"
	default:
		return "fade"
	}
}

// mixFilter delays each dialogue track to its absolute start offset, scales
// and loops the music bed, and mixes everything additively.
func (c Compositor) mixFilter(scenes []entities.SceneDescriptor, tracks []entities.AudioTrack, music *entities.MusicTrack) string {
	startByLine := make(map[string]float64)
	offset := 0.0
	for _, s := range scenes {
		for _, l := range s.Dialogue {
			startByLine[l.ID] = offset + l.Timing.Start
		}
		offset += s.Duration
	}

	var b strings.Builder
	var labels []string
	for i, t := range tracks {
		ms := int(startByLine[t.DialogueID] * 1000)
		fmt.Fprintf(&b, "[%d:a]adelay=%d|%d[d%d];", i+1, ms, ms, i)
		labels = append(labels, fmt.Sprintf("[d%d]", i))
	}
	if music != nil {
		vol := music.Volume
		if vol <= 0 {
			vol = c.MusicVolume
		}
		idx := len(tracks) + 1
		loop := ""
		if music.Loop {
			loop = "aloop=loop=-1:size=2147483647,"
		}
		fmt.Fprintf(&b, "[%d:a]%svolume=%.2f,afade=t=in:d=1[m];", idx, loop, vol)
		labels = append(labels, "[m]")
	}
	fmt.Fprintf(&b, "%samix=inputs=%d:duration=first:normalize=0[aout]", strings.Join(labels, ""), len(labels))
	return b.String()
}

func qualityCRF(q constant.Quality) string {
	switch q {
	case constant.QualityHigh:
		return "18"
	case constant.QualityLow:
		return "28"
	default:
		return "23"
	}
}
