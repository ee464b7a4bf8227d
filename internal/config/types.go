package config

import (
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Colab     ColabConfig     `yaml:"colab" mapstructure:"colab"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ColabConfig holds the upstream Colab service endpoints
type ColabConfig struct {
	APIDomain  string `yaml:"api_domain" mapstructure:"api_domain"`
	GapiDomain string `yaml:"gapi_domain" mapstructure:"gapi_domain"`
}

// HTTPConfig holds REST transport settings
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBase   time.Duration `yaml:"retry_base" mapstructure:"retry_base"`
	RetryCap    time.Duration `yaml:"retry_cap" mapstructure:"retry_cap"`
	RetryJitter float64       `yaml:"retry_jitter" mapstructure:"retry_jitter"`
}

// WebSocketConfig holds kernel channel settings
type WebSocketConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteQueueSize int           `yaml:"write_queue_size" mapstructure:"write_queue_size"`
	DrainTimeout   time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
}

// HistoryConfig holds the execution history log settings
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig holds logging behaviour
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Theme      string `yaml:"theme" mapstructure:"theme"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
	FileOutput bool   `yaml:"file_output" mapstructure:"file_output"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
}

// Validate checks configuration for values that cannot work
func (c *Config) Validate() error {
	if c.Colab.APIDomain == "" {
		return &ValidationError{Field: "colab.api_domain", Reason: "must not be empty"}
	}
	if c.Colab.GapiDomain == "" {
		return &ValidationError{Field: "colab.gapi_domain", Reason: "must not be empty"}
	}
	if c.HTTP.Timeout <= 0 {
		return &ValidationError{Field: "http.timeout", Reason: "must be positive"}
	}
	if c.WebSocket.ConnectTimeout <= 0 {
		return &ValidationError{Field: "websocket.connect_timeout", Reason: "must be positive"}
	}
	if c.WebSocket.WriteQueueSize <= 0 {
		return &ValidationError{Field: "websocket.write_queue_size", Reason: "must be positive"}
	}
	if c.History.Path == "" {
		return &ValidationError{Field: "history.path", Reason: "must not be empty"}
	}
	return nil
}

// ValidationError reports a config field that failed validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid configuration for " + e.Field + ": " + e.Reason
}
