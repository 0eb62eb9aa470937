package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shortform-pipeline/config"
	"shortform-pipeline/constant"
	"shortform-pipeline/dto"
	jobHandler "shortform-pipeline/handler"
	"shortform-pipeline/pkg/rabbitmq"
	"shortform-pipeline/pkg/sse"
	"shortform-pipeline/provider"
	"shortform-pipeline/repository"
	"shortform-pipeline/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}

	repo := repository.NewRepo(cfg.DB)
	hub := sse.NewHub()

	limiter := provider.NewLimiter(cfg.Pipeline.ExternalConcurrency)
	workDir := "temp"
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Repo: repo,
		Script: provider.NewScriptClient(provider.Options{
			BaseURL: cfg.Providers.ScriptURL,
			APIKey:  cfg.Providers.APIKey,
			Limiter: limiter,
		}),
		Assets: provider.NewAssetClient(provider.Options{
			BaseURL: cfg.Providers.AssetURL,
			APIKey:  cfg.Providers.APIKey,
			Limiter: limiter,
		}),
		TTS: provider.NewTTSClient(provider.Options{
			BaseURL: cfg.Providers.TTSURL,
			APIKey:  cfg.Providers.APIKey,
			Limiter: limiter,
		}),
		Engine: provider.NewFFmpegEngine(workDir),
		Store: &service.MinioStore{
			Client:  cfg.Storage,
			Bucket:  cfg.MinIOBucket,
			WorkDir: workDir,
		},
		Publisher: rabbitmq.NewPublisher(conn, cfg.Queue),
		Notifier:  hub,
		WorkDir:   workDir,
	}, cfg.Pipeline)

	serviceDeps := jobHandler.ServiceDependencies{Orchestrator: orchestrator}

	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)
	go func() {
		if err := consumer.Consume(ctx, serviceDeps); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("job consumer error")
		}
	}()

	r := gin.Default()
	addHealth(r)
	addJobRoutes(ctx, r, orchestrator, hub)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addJobRoutes(ctx context.Context, r *gin.Engine, orchestrator *service.Orchestrator, hub *sse.Hub) {
	api := r.Group("/api/v1")

	api.POST("/jobs", func(c *gin.Context) {
		var req dto.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := orchestrator.Submit(zerolog.Ctx(ctx).WithContext(c.Request.Context()), req)
		if err != nil {
			var pe *service.PipelineError
			if errors.As(err, &pe) && pe.Class == service.ClassValidation {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept job"})
			return
		}
		c.JSON(http.StatusAccepted, dto.SubmitResponse{JobId: id.String()})
	})

	api.GET("/jobs/:id", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
			return
		}
		status, err := orchestrator.GetStatus(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	api.POST("/jobs/:id/cancel", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
			return
		}
		if err := orchestrator.Cancel(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancellation requested"})
	})

	api.GET("/jobs/:id/events", func(c *gin.Context) {
		topic := c.Param("id")
		ch := hub.Subscribe(topic)
		defer hub.Unsubscribe(topic, ch)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case msg, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("job", string(msg))
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	})
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
