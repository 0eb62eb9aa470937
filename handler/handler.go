package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"shortform-pipeline/dto"
	"shortform-pipeline/service"
)

type ServiceDependencies struct {
	Orchestrator *service.Orchestrator
}

// JobHandler delivers a queued job to the pipeline orchestrator.
func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.JobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal job message")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", job.JobId.String()).Msg("received job message")

	return deps.Orchestrator.Process(ctx, job)
}
