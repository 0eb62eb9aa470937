package entities

import "shortform-pipeline/constant"

// RenderUnit is the per-scene work item during parallel rendering. It is
// mutated only by its owning worker.
type RenderUnit struct {
	SceneID  string                    `json:"scene_id"`
	WorkerID int                       `json:"worker_id"`
	Status   constant.RenderUnitStatus `json:"status"`
	Progress int                       `json:"progress"`
	ClipRef  string                    `json:"clip_ref,omitempty"`
	Err      error                     `json:"-"`
}
