package config

import (
	"fmt"
	"time"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/batch"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

type Config struct {
	Planner   PlannerConfig      `mapstructure:"planner"`
	Gate      planner.GateConfig `mapstructure:"gate"`
	Batch     BatchConfig        `mapstructure:"batch"`
	Reconcile ReconcileConfig    `mapstructure:"reconcile"`
	Input     InputConfig        `mapstructure:"input"`
	Output    OutputConfig       `mapstructure:"output"`
	Reference ReferenceConfig    `mapstructure:"reference"`
	Secrets   SecretsConfig      `mapstructure:"secrets"`
	Server    ServerConfig       `mapstructure:"server"`
	Logger    logger.Config      `mapstructure:"logger"`
}

type PlannerConfig struct {
	planner.ClientConfig `mapstructure:",squash"`
	// LanguageID is a Google Ads language constant id or "auto".
	LanguageID string `mapstructure:"language_id"`
}

type BatchConfig struct {
	ChunkSize   int           `mapstructure:"chunk_size"`
	PacingDelay time.Duration `mapstructure:"pacing_delay"`
}

type ReconcileConfig struct {
	MaxRounds int           `mapstructure:"max_rounds"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type InputConfig struct {
	MaxKeywords int `mapstructure:"max_keywords"`
}

type OutputConfig struct {
	CSVPath    string `mapstructure:"csv_path"`
	MissingLog string `mapstructure:"missing_log"`
}

type ReferenceConfig struct {
	GeoTargetsFile string `mapstructure:"geo_targets_file"`
}

type SecretsConfig struct {
	File string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout bounds the wait for an interrupted fetch to answer.
	// It should exceed planner.request_timeout.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RunConfig is the batch-level view of the configuration.
func (c *Config) RunConfig() batch.Config {
	return batch.Config{
		ChunkSize:   c.Batch.ChunkSize,
		PacingDelay: c.Batch.PacingDelay,
		MaxRounds:   c.Reconcile.MaxRounds,
		Cooldown:    c.Reconcile.Cooldown,
	}
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
