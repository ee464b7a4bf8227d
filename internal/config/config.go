package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIDomain  = "https://colab.research.google.com"
	DefaultGapiDomain = "https://colab.googleapis.com"

	DefaultHTTPTimeout    = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBase      = 500 * time.Millisecond
	DefaultRetryCap       = 8 * time.Second
	DefaultConnectTimeout = 20 * time.Second
	DefaultPingInterval   = 20 * time.Second
	DefaultPongTimeout    = 60 * time.Second
	DefaultWriteQueueSize = 16
	DefaultDrainTimeout   = 1 * time.Second
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Colab: ColabConfig{
			APIDomain:  DefaultAPIDomain,
			GapiDomain: DefaultGapiDomain,
		},
		HTTP: HTTPConfig{
			Timeout:     DefaultHTTPTimeout,
			MaxRetries:  DefaultMaxRetries,
			RetryBase:   DefaultRetryBase,
			RetryCap:    DefaultRetryCap,
			RetryJitter: 0,
		},
		WebSocket: WebSocketConfig{
			ConnectTimeout: DefaultConnectTimeout,
			PingInterval:   DefaultPingInterval,
			PongTimeout:    DefaultPongTimeout,
			WriteQueueSize: DefaultWriteQueueSize,
			DrainTimeout:   DefaultDrainTimeout,
		},
		History: HistoryConfig{
			Path: DefaultHistoryPath(),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			Dir:        DefaultStateDir(),
			FileOutput: false,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// DefaultStateDir is where colabctl keeps its local state ($HOME/.colab)
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".colab"
	}
	return filepath.Join(home, ".colab")
}

// DefaultHistoryPath is the default execution history log location
func DefaultHistoryPath() string {
	return filepath.Join(DefaultStateDir(), "history.jsonl")
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration, preferring an explicit config file path
func LoadFrom(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("colabctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(DefaultStateDir())

	v.SetEnvPrefix("COLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv("COLAB_CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		// a missing config file is fine; everything has defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configFile != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	bindDefaults(v, config)

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// bindDefaults registers defaults so AutomaticEnv picks up COLAB_* overrides
// for keys absent from the config file
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("colab.api_domain", c.Colab.APIDomain)
	v.SetDefault("colab.gapi_domain", c.Colab.GapiDomain)
	v.SetDefault("http.timeout", c.HTTP.Timeout)
	v.SetDefault("http.max_retries", c.HTTP.MaxRetries)
	v.SetDefault("http.retry_base", c.HTTP.RetryBase)
	v.SetDefault("http.retry_cap", c.HTTP.RetryCap)
	v.SetDefault("http.retry_jitter", c.HTTP.RetryJitter)
	v.SetDefault("websocket.connect_timeout", c.WebSocket.ConnectTimeout)
	v.SetDefault("websocket.ping_interval", c.WebSocket.PingInterval)
	v.SetDefault("websocket.pong_timeout", c.WebSocket.PongTimeout)
	v.SetDefault("websocket.write_queue_size", c.WebSocket.WriteQueueSize)
	v.SetDefault("websocket.drain_timeout", c.WebSocket.DrainTimeout)
	v.SetDefault("history.path", c.History.Path)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.theme", c.Logging.Theme)
	v.SetDefault("logging.dir", c.Logging.Dir)
	v.SetDefault("logging.file_output", c.Logging.FileOutput)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
}
