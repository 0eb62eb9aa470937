package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Pipeline    Pipeline      `yaml:"pipeline"`
	Providers   Providers     `yaml:"providers"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Pipeline holds the generation tunables. Zero values are replaced by
// defaults in applyPipelineDefaults so a sparse config.yaml still works.
type Pipeline struct {
	MinSceneDuration    float64       `yaml:"min_scene_duration"`
	MaxSceneDuration    float64       `yaml:"max_scene_duration"`
	DurationTolerance   float64       `yaml:"duration_tolerance"`
	MaxRetries          int           `yaml:"max_retries"`
	BaseDelay           time.Duration `yaml:"base_delay"`
	StageTimeout        time.Duration `yaml:"stage_timeout"`
	RenderWorkers       int           `yaml:"render_workers"`
	TTSConcurrency      int           `yaml:"tts_concurrency"`
	ExternalConcurrency int           `yaml:"external_concurrency"`
	MusicVolume         float64       `yaml:"music_volume"`
	FrameRate           int           `yaml:"frame_rate"`
	FallbackVoiceID     string        `yaml:"fallback_voice_id"`
	FallbackLineSeconds float64       `yaml:"fallback_line_seconds"`
}

type Providers struct {
	ScriptURL string `yaml:"script_url"`
	AssetURL  string `yaml:"asset_url"`
	TTSURL    string `yaml:"tts_url"`
	APIKey    string `yaml:"api_key"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	pipeline := Pipeline{
		MinSceneDuration:    viper.GetFloat64("pipeline.min_scene_duration"),
		MaxSceneDuration:    viper.GetFloat64("pipeline.max_scene_duration"),
		DurationTolerance:   viper.GetFloat64("pipeline.duration_tolerance"),
		MaxRetries:          viper.GetInt("pipeline.max_retries"),
		BaseDelay:           viper.GetDuration("pipeline.base_delay"),
		StageTimeout:        viper.GetDuration("pipeline.stage_timeout"),
		RenderWorkers:       viper.GetInt("pipeline.render_workers"),
		TTSConcurrency:      viper.GetInt("pipeline.tts_concurrency"),
		ExternalConcurrency: viper.GetInt("pipeline.external_concurrency"),
		MusicVolume:         viper.GetFloat64("pipeline.music_volume"),
		FrameRate:           viper.GetInt("pipeline.frame_rate"),
		FallbackVoiceID:     viper.GetString("pipeline.fallback_voice_id"),
		FallbackLineSeconds: viper.GetFloat64("pipeline.fallback_line_seconds"),
	}
	applyPipelineDefaults(&pipeline)

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Pipeline: pipeline,
		Providers: Providers{
			ScriptURL: viper.GetString("providers.script_url"),
			AssetURL:  viper.GetString("providers.asset_url"),
			TTSURL:    viper.GetString("providers.tts_url"),
			APIKey:    viper.GetString("providers.api_key"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}

func applyPipelineDefaults(p *Pipeline) {
	if p.MinSceneDuration <= 0 {
		p.MinSceneDuration = 3
	}
	if p.MaxSceneDuration <= 0 {
		p.MaxSceneDuration = 15
	}
	if p.DurationTolerance <= 0 {
		p.DurationTolerance = 5
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.StageTimeout <= 0 {
		p.StageTimeout = 30 * time.Second
	}
	if p.RenderWorkers <= 0 {
		p.RenderWorkers = 4
	}
	if p.TTSConcurrency <= 0 {
		p.TTSConcurrency = 5
	}
	if p.ExternalConcurrency <= 0 {
		p.ExternalConcurrency = 5
	}
	if p.MusicVolume <= 0 {
		p.MusicVolume = 0.3
	}
	if p.FrameRate <= 0 {
		p.FrameRate = 30
	}
	if p.FallbackVoiceID == "" {
		p.FallbackVoiceID = "neutral-01"
	}
	if p.FallbackLineSeconds <= 0 {
		p.FallbackLineSeconds = 2
	}
}
