package planner

import (
	"time"

	"github.com/valyala/fasthttp"
)

// ConnectionConfig holds fasthttp client settings for the Ads endpoint.
type ConnectionConfig struct {
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	MaxIdleConnDuration time.Duration `mapstructure:"max_idle_conn_duration"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	MaxResponseBodySize int           `mapstructure:"max_response_body_size"`
}

// DefaultConnectionConfig suits one sequential caller sending large
// batches: few connections, generous read timeout and body size.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConnsPerHost:     4,
		MaxIdleConnDuration: 90 * time.Second,
		ReadTimeout:         60 * time.Second,
		WriteTimeout:        30 * time.Second,
		MaxResponseBodySize: 64 << 20,
	}
}

func newFastHTTPClient(cfg ConnectionConfig, dial fasthttp.DialFunc) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                "keyword-planner-volumes/1.0",
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnDuration: cfg.MaxIdleConnDuration,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		MaxResponseBodySize: cfg.MaxResponseBodySize,
		Dial:                dial,
	}
}
