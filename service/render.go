package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"shortform-pipeline/constant"
	"shortform-pipeline/entities"
	"shortform-pipeline/provider"
)

// RenderScheduler partitions a job's scenes across a bounded worker pool.
// Each worker executes the per-scene command chains independently; the
// barrier is the WaitGroup in Render. A worker failure never aborts its
// siblings: every unit either completes or exhausts its retries before the
// stage result is decided.
type RenderScheduler struct {
	Engine  provider.MediaEngine
	Workers int
	Retry   RetryPolicy
}

// Render executes the given per-scene chains and blocks until every unit is
// terminal. If any unit failed, the returned error carries RenderError so
// the orchestrator can retry the whole stage.
func (s RenderScheduler) Render(ctx context.Context, jobID string, chains []*entities.CommandChain, clipRefs []string) ([]entities.RenderUnit, error) {
	units := make([]entities.RenderUnit, len(chains))
	for i := range units {
		units[i] = entities.RenderUnit{
			SceneID: sceneIDOf(chains[i]),
			Status:  constant.RenderUnitPending,
		}
	}
	if len(chains) == 0 {
		return units, nil
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(chains) {
		workers = len(chains)
	}

	work := make(chan int, len(chains))
	for i := range chains {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for i := range work {
				s.renderUnit(ctx, workerId, chains[i], clipRefs[i], &units[i])
			}
		}(w)
	}
	wg.Wait()

	failed := 0
	for i := range units {
		if units[i].Status == constant.RenderUnitFailed {
			failed++
		}
	}
	if failed > 0 {
		return units, NewRenderError(fmt.Errorf("%d of %d render units failed", failed, len(units)))
	}
	return units, nil
}

func (s RenderScheduler) renderUnit(ctx context.Context, workerId int, chain *entities.CommandChain, clipRef string, unit *entities.RenderUnit) {
	unit.WorkerID = workerId
	unit.Status = constant.RenderUnitProcessing

	retries, err := s.Retry.Do(ctx, "render", func(ctx context.Context) error {
		if err := s.Engine.Execute(ctx, chain); err != nil {
			return NewRenderError(err)
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Int("worker_id", workerId).
			Str("scene_id", unit.SceneID).
			Int("retries", retries).
			Msg("render unit failed")
		unit.Status = constant.RenderUnitFailed
		unit.Err = err
		return
	}

	unit.Status = constant.RenderUnitCompleted
	unit.Progress = 100
	unit.ClipRef = clipRef
}

func sceneIDOf(chain *entities.CommandChain) string {
	if chain == nil || len(chain.Commands) == 0 {
		return ""
	}
	// Scene chains carry the scene id in their output path, jobs/{job}/scenes/{scene}/...
	out := chain.Commands[len(chain.Commands)-1].Output
	parts := strings.Split(out, "/")
	for i, p := range parts {
		if p == "scenes" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return out
}
