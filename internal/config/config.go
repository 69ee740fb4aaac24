package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"rag-keeper/internal/env"
)

/**
 * Server configuration parameters
 * @property {string} address - Control API listening address (e.g. "127.0.0.1:8999")
 * @property {string} mode - gin mode (debug/release/test)
 * @property {string} socket - Unix socket path, empty means <home>/run/keeper.sock
 * @property {bool} watchConfig - Reload apps when the ecosystem file changes
 */
type ServerConfig struct {
	Address     string `mapstructure:"address" json:"address,omitempty"`
	Mode        string `mapstructure:"mode" json:"mode,omitempty"`
	Socket      string `mapstructure:"socket" json:"socket,omitempty"`
	WatchConfig bool   `mapstructure:"watch_config" json:"watch_config,omitempty"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" for stdout only
 * @property {string} format - text or json
 */
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level,omitempty"`
	Path   string `mapstructure:"path" json:"path,omitempty"`
	Format string `mapstructure:"format" json:"format,omitempty"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address for metrics, empty disables pushing
 * @property {int} pushInterval - Seconds between pushes
 * @property {string} job - Job label used when pushing
 */
type MetricsConfig struct {
	Pushgateway  string `mapstructure:"pushgateway" json:"pushgateway,omitempty"`
	PushInterval int    `mapstructure:"push_interval" json:"push_interval,omitempty"`
	Job          string `mapstructure:"job" json:"job,omitempty"`
}

/**
 * Lifecycle history configuration
 * @property {int} capacity - Size of the in-flight event buffer
 * @property {int} keep - Events kept in memory per process
 * @property {string} path - JSON lines file, empty disables the file sink
 * @property {string} postgresDSN - Postgres connection string, empty disables the database sink
 */
type HistoryConfig struct {
	Capacity    int    `mapstructure:"capacity" json:"capacity,omitempty"`
	Keep        int    `mapstructure:"keep" json:"keep,omitempty"`
	Path        string `mapstructure:"path" json:"path,omitempty"`
	PostgresDSN string `mapstructure:"postgres_dsn" json:"postgres_dsn,omitempty"`
}

// PageConfig 聊天页面外壳
type PageConfig struct {
	Title        string `mapstructure:"title" json:"title,omitempty"`
	Subtitle     string `mapstructure:"subtitle" json:"subtitle,omitempty"`
	WidgetScript string `mapstructure:"widget_script" json:"widget_script,omitempty"`
}

var ErrNoApps = errors.New("no apps declared")

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" json:"server,omitempty"`
	Log     LogConfig     `mapstructure:"log" json:"log,omitempty"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics,omitempty"`
	History HistoryConfig `mapstructure:"history" json:"history,omitempty"`
	Page    PageConfig    `mapstructure:"page" json:"page,omitempty"`
	// apps are decoded separately, see decodeApps
	Apps []AppSpec `mapstructure:"-"`

	// File is the absolute path the configuration was loaded from
	File string `mapstructure:"-"`
	// Profile selects env_<profile> blocks
	Profile string `mapstructure:"-"`
}

var (
	current *AppConfig
	mu      sync.RWMutex
)

/**
 * Load ecosystem file
 * @param {string} path - YAML or JSON ecosystem file
 * @param {string} profile - Environment profile, selects env_<profile> blocks
 * @returns {*AppConfig} Validated configuration
 * @returns {error} Read, decode or validation error
 * @description
 * - Keeper settings (server/log/metrics/history/page) are read through viper
 * - apps are decoded as yaml.v3 nodes, env keys keep their case and values their literal text
 * - Relative cwd resolves against the supervisor working directory
 * - Relative log paths resolve against the app cwd
 * - Every violation is reported in one error
 * @example
 * cfg, err := config.Load("ecosystem.yaml", "production")
 */
func Load(path, profile string) (*AppConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", abs, err)
	}
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	apps, err := decodeApps(data, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode apps in %s: %w", abs, err)
	}
	cfg.Apps = apps
	cfg.File = abs
	cfg.Profile = profile

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	collectConfig(&cfg)
	for i := range cfg.Apps {
		cfg.Apps[i].resolve(wd, env.LogsDir())
	}
	if len(cfg.Apps) == 0 {
		return nil, ErrNoApps
	}
	if err := Validate(cfg.Apps); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:8999"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.Socket == "" {
		cfg.Server.Socket = env.SocketPath()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.PushInterval <= 0 {
		cfg.Metrics.PushInterval = 30
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "rag-keeper"
	}
	if cfg.History.Capacity <= 0 {
		cfg.History.Capacity = 1024
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = 100
	}
	if cfg.Page.Title == "" {
		cfg.Page.Title = DefaultTitle
	}
	if cfg.Page.Subtitle == "" {
		cfg.Page.Subtitle = DefaultSubtitle
	}
	if s, err := env.Load(); err == nil {
		if s.Address != "" {
			cfg.Server.Address = s.Address
		}
		if s.LogLevel != "" {
			cfg.Log.Level = s.LogLevel
		}
	}
	return cfg
}

const (
	DefaultTitle    = "RAG Chatbot"
	DefaultSubtitle = "Powered by AWS Bedrock NovaLite & ChromaDB"
)

/**
 * Defaults returns keeper settings with no apps, used by CLI verbs before a file is loaded
 */
func Defaults() *AppConfig {
	return collectConfig(&AppConfig{})
}

// Set 替换当前生效的配置
func Set(cfg *AppConfig) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// App 返回当前生效的配置，未加载时返回默认值
func App() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Defaults()
	}
	return current
}
