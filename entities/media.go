package entities

import "fmt"

type MediaOp string

const (
	OpAssembleFrames MediaOp = "assemble_frames"
	OpOverlay        MediaOp = "overlay"
	OpCameraMotion   MediaOp = "camera_motion"
	OpConcat         MediaOp = "concat"
	OpBurnSubtitles  MediaOp = "burn_subtitles"
	OpMixAudio       MediaOp = "mix_audio"
	OpScalePad       MediaOp = "scale_pad"
	OpEncode         MediaOp = "encode"
)

// MediaCommand is one composition operation with explicit input and output
// artifact references. Commands are never opaque strings; the typed form is
// what gets validated, logged and retried.
type MediaCommand struct {
	Op     MediaOp           `json:"op"`
	Inputs []string          `json:"inputs"`
	Output string            `json:"output"`
	Params map[string]string `json:"params,omitempty"`
}

// CommandChain is the ordered, acyclic command list for one job or one scene.
// Every input must be an external artifact or the output of an earlier
// command, and outputs must be unique.
type CommandChain struct {
	JobID    string         `json:"job_id"`
	Commands []MediaCommand `json:"commands"`
}

// Validate checks the linear-DAG property of the chain.
func (c *CommandChain) Validate(external map[string]bool) error {
	produced := make(map[string]bool, len(c.Commands))
	for i, cmd := range c.Commands {
		if cmd.Output == "" {
			return fmt.Errorf("command %d (%s): empty output", i, cmd.Op)
		}
		if produced[cmd.Output] {
			return fmt.Errorf("command %d (%s): duplicate output %q", i, cmd.Op, cmd.Output)
		}
		for _, in := range cmd.Inputs {
			if !produced[in] && !external[in] {
				return fmt.Errorf("command %d (%s): unknown input %q", i, cmd.Op, in)
			}
		}
		produced[cmd.Output] = true
	}
	return nil
}
