package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"shortform-pipeline/entities"
)

// FFmpegEngine executes command chains with a local ffmpeg binary. Artifact
// refs are resolved as paths relative to WorkDir.
type FFmpegEngine struct {
	WorkDir string
}

func NewFFmpegEngine(workDir string) *FFmpegEngine {
	return &FFmpegEngine{WorkDir: workDir}
}

func (e *FFmpegEngine) Execute(ctx context.Context, chain *entities.CommandChain) error {
	for i, cmd := range chain.Commands {
		zerolog.Ctx(ctx).Debug().
			Str("job_id", chain.JobID).
			Int("step", i).
			Str("op", string(cmd.Op)).
			Str("output", cmd.Output).
			Msg("executing media command")

		args, err := e.buildArgs(cmd)
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
		}
		if err := e.run(ctx, args); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
		}
	}
	return nil
}

func (e *FFmpegEngine) path(ref string) string {
	return filepath.Join(e.WorkDir, filepath.FromSlash(ref))
}

func (e *FFmpegEngine) buildArgs(cmd entities.MediaCommand) ([]string, error) {
	out := e.path(cmd.Output)
	if err := os.MkdirAll(filepath.Dir(out), os.ModePerm); err != nil {
		return nil, err
	}

	switch cmd.Op {
	case entities.OpAssembleFrames:
		// Background still image looped to the scene's exact duration. When
		// no image was generated for the scene, a flat color source derived
		// from the background type stands in.
		src := e.path(cmd.Inputs[0])
		var args []string
		if _, err := os.Stat(src); err == nil {
			args = []string{"-loop", "1", "-t", cmd.Params["duration"], "-i", src}
		} else {
			args = []string{
				"-f", "lavfi",
				"-i", fmt.Sprintf("color=c=%s:s=1280x720:d=%s", backgroundColor(cmd.Params["background_type"]), cmd.Params["duration"]),
			}
		}
		args = append(args,
			"-vf", fmt.Sprintf("fps=%s,format=yuv420p", cmd.Params["fps"]),
			"-c:v", "libx264", "-preset", "veryfast",
			"-y", out)
		return args, nil

	case entities.OpOverlay:
		args := make([]string, 0, 2*len(cmd.Inputs)+6)
		for _, in := range cmd.Inputs {
			args = append(args, "-i", e.path(in))
		}
		args = append(args,
			"-filter_complex", cmd.Params["filter"],
			"-map", "[vout]",
			"-c:v", "libx264", "-preset", "veryfast",
			"-y", out)
		return args, nil

	case entities.OpCameraMotion:
		return []string{
			"-i", e.path(cmd.Inputs[0]),
			"-vf", cmd.Params["filter"],
			"-c:v", "libx264", "-preset", "veryfast",
			"-y", out,
		}, nil

	case entities.OpConcat:
		if cmd.Params["filter"] != "" {
			// Transitions present, xfade filter graph built by the composer.
			args := make([]string, 0, 2*len(cmd.Inputs)+8)
			for _, in := range cmd.Inputs {
				args = append(args, "-i", e.path(in))
			}
			args = append(args,
				"-filter_complex", cmd.Params["filter"],
				"-map", "[vout]",
				"-c:v", "libx264", "-preset", "veryfast",
				"-y", out)
			return args, nil
		}
		listFile, err := e.writeConcatList(cmd.Inputs, out)
		if err != nil {
			return nil, err
		}
		return []string{
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
			"-y", out,
		}, nil

	case entities.OpBurnSubtitles:
		return []string{
			"-i", e.path(cmd.Inputs[0]),
			"-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(e.path(cmd.Inputs[1]))),
			"-c:v", "libx264", "-preset", "veryfast",
			"-y", out,
		}, nil

	case entities.OpMixAudio:
		args := make([]string, 0, 2*len(cmd.Inputs)+10)
		for _, in := range cmd.Inputs {
			args = append(args, "-i", e.path(in))
		}
		args = append(args,
			"-filter_complex", cmd.Params["filter"],
			"-map", "0:v",
			"-map", "[aout]",
			"-c:v", "copy",
			"-c:a", "aac",
			"-y", out)
		return args, nil

	case entities.OpScalePad:
		w, h := cmd.Params["width"], cmd.Params["height"]
		return []string{
			"-i", e.path(cmd.Inputs[0]),
			"-vf", fmt.Sprintf("scale=w=%s:h=%s:force_original_aspect_ratio=decrease,pad=w=%s:h=%s:x=(ow-iw)/2:y=(oh-ih)/2", w, h, w, h),
			"-c:v", "libx264", "-preset", "veryfast",
			"-y", out,
		}, nil

	case entities.OpEncode:
		args := []string{"-i", e.path(cmd.Inputs[0])}
		if cmd.Params["scale"] != "" {
			args = append(args, "-vf", fmt.Sprintf("scale=%s", cmd.Params["scale"]))
		}
		if cmd.Params["frames"] != "" {
			// Single-frame thumbnail.
			args = append(args, "-frames:v", cmd.Params["frames"])
		} else {
			args = append(args,
				"-c:v", "libx264",
				"-preset", "medium",
				"-crf", cmd.Params["crf"],
				"-c:a", "aac",
				"-movflags", "+faststart")
		}
		args = append(args, "-y", out)
		return args, nil
	}

	return nil, fmt.Errorf("unknown media op %q", cmd.Op)
}

func (e *FFmpegEngine) writeConcatList(inputs []string, out string) (string, error) {
	listFile := strings.TrimSuffix(out, filepath.Ext(out)) + "_concat.txt"
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(e.path(in))
		if err != nil {
			return "", err
		}
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listFile, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return listFile, nil
}

func (e *FFmpegEngine) run(ctx context.Context, args []string) error {
	c := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := c.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("ffmpeg_output", string(output)).Msg("ffmpeg execution failed")
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

var backgroundColors = map[string]string{
	"nature":   "darkseagreen",
	"city":     "slategray",
	"indoor":   "navajowhite",
	"outdoor":  "skyblue",
	"abstract": "midnightblue",
}

func backgroundColor(typ string) string {
	if c, ok := backgroundColors[typ]; ok {
		return c
	}
	return "black"
}

// escapeFilterPath escapes characters that break ffmpeg filter arguments.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}
