package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/keywords"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// EnvPrefix is prepended to every environment override, e.g.
// KWP_BATCH_CHUNK_SIZE for batch.chunk_size.
const EnvPrefix = "KWP"

type manager struct {
	mu         sync.RWMutex
	config     *Config
	viper      *viper.Viper
	configPath string
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads configPath if it exists. A missing file is not an error: every
// option has a default and can be set through the environment.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configPath = configPath
	m.setupViper(configPath)

	config, err := m.read()
	if err != nil {
		return nil, err
	}
	m.config = config
	return config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return fmt.Errorf("config not loaded")
	}

	config, err := m.read()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) setupViper(configPath string) {
	setDefaults(m.viper)

	if configPath != "" {
		m.viper.SetConfigFile(configPath)
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
}

func (m *manager) read() (*Config, error) {
	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, &ConfigurationError{Field: m.configPath, Err: fmt.Errorf("failed to read config: %w", err)}
		}
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	client := planner.DefaultClientConfig()
	gate := planner.DefaultGateConfig()

	v.SetDefault("planner.endpoint", client.Endpoint)
	v.SetDefault("planner.api_version", client.APIVersion)
	v.SetDefault("planner.token_url", client.TokenURL)
	v.SetDefault("planner.max_keywords_per_call", client.MaxKeywordsPerCall)
	v.SetDefault("planner.request_timeout", client.RequestTimeout)
	v.SetDefault("planner.language_id", planner.DefaultLanguageID)
	v.SetDefault("planner.connection.max_conns_per_host", client.Connection.MaxConnsPerHost)
	v.SetDefault("planner.connection.max_idle_conn_duration", client.Connection.MaxIdleConnDuration)
	v.SetDefault("planner.connection.read_timeout", client.Connection.ReadTimeout)
	v.SetDefault("planner.connection.write_timeout", client.Connection.WriteTimeout)
	v.SetDefault("planner.connection.max_response_body_size", client.Connection.MaxResponseBodySize)

	v.SetDefault("gate.rate_interval", gate.RateInterval)
	v.SetDefault("gate.max_attempts", gate.MaxAttempts)
	v.SetDefault("gate.retry_delay", gate.RetryDelay)

	v.SetDefault("batch.chunk_size", planner.DefaultMaxKeywordsPerCall)
	v.SetDefault("batch.pacing_delay", 3*time.Second)

	v.SetDefault("reconcile.max_rounds", 2)
	v.SetDefault("reconcile.cooldown", 30*time.Second)

	v.SetDefault("input.max_keywords", keywords.DefaultMaxKeywords)

	v.SetDefault("output.csv_path", "keyword_data.csv")
	v.SetDefault("output.missing_log", "missing_keywords.log")

	v.SetDefault("reference.geo_targets_file", "config/country_geo_targets.csv")
	v.SetDefault("secrets.file", "config/secrets.yaml")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 75*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.time_format", "")
}

func validateConfig(config *Config) error {
	invalid := func(field string, format string, args ...interface{}) error {
		return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
	}

	if config.Planner.MaxKeywordsPerCall <= 0 || config.Planner.MaxKeywordsPerCall > planner.DefaultMaxKeywordsPerCall {
		return invalid("planner.max_keywords_per_call", "must be between 1 and %d, got %d", planner.DefaultMaxKeywordsPerCall, config.Planner.MaxKeywordsPerCall)
	}
	if config.Planner.LanguageID == "" {
		return invalid("planner.language_id", "cannot be empty")
	}
	if config.Batch.ChunkSize <= 0 {
		return invalid("batch.chunk_size", "must be positive, got %d", config.Batch.ChunkSize)
	}
	if config.Batch.ChunkSize > config.Planner.MaxKeywordsPerCall {
		return invalid("batch.chunk_size", "%d exceeds planner.max_keywords_per_call %d", config.Batch.ChunkSize, config.Planner.MaxKeywordsPerCall)
	}
	if config.Gate.MaxAttempts < 1 {
		return invalid("gate.max_attempts", "must be at least 1, got %d", config.Gate.MaxAttempts)
	}
	if config.Gate.RateInterval < 0 || config.Gate.RetryDelay < 0 {
		return invalid("gate", "delays cannot be negative")
	}
	if config.Batch.PacingDelay < 0 {
		return invalid("batch.pacing_delay", "cannot be negative")
	}
	if config.Reconcile.MaxRounds < 0 {
		return invalid("reconcile.max_rounds", "cannot be negative, got %d", config.Reconcile.MaxRounds)
	}
	if config.Reconcile.Cooldown < 0 {
		return invalid("reconcile.cooldown", "cannot be negative")
	}
	if config.Input.MaxKeywords <= 0 {
		return invalid("input.max_keywords", "must be positive, got %d", config.Input.MaxKeywords)
	}
	if config.Output.MissingLog == "" {
		return invalid("output.missing_log", "cannot be empty")
	}
	return nil
}
