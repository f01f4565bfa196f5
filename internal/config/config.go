// Package config handles configuration loading and validation for the
// uhashminer binary.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the miner process.
type Config struct {
	Mining     MiningConfig     `mapstructure:"mining"`
	Node       NodeConfig       `mapstructure:"node"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	API        APIConfig        `mapstructure:"api"`
	Security   SecurityConfig   `mapstructure:"security"`
	Log        LogConfig        `mapstructure:"log"`
	Profiling  ProfilingConfig  `mapstructure:"profiling"`
	NewRelic   NewRelicConfig   `mapstructure:"newrelic"`
}

// MiningConfig defines the worker pool and round-refresh behavior.
type MiningConfig struct {
	Address            string        `mapstructure:"address"`
	Threads            int           `mapstructure:"threads"`
	DifficultyOverride uint32        `mapstructure:"difficulty_override"`
	RefreshInterval    time.Duration `mapstructure:"refresh_interval"`
	HashrateInterval   time.Duration `mapstructure:"hashrate_interval"`
	SingleShot         bool          `mapstructure:"single_shot"`
}

// NodeConfig defines the Bostrom RPC/LCD upstream connection settings
// consumed by internal/rpc.
type NodeConfig struct {
	URL                 string           `mapstructure:"url"`
	LCDURL              string           `mapstructure:"lcd_url"`
	ContractAddress     string           `mapstructure:"contract_address"`
	Timeout             time.Duration    `mapstructure:"timeout"`
	Upstreams           []UpstreamConfig `mapstructure:"upstreams"`
	HealthCheckInterval time.Duration    `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration    `mapstructure:"health_check_timeout"`
	MaxFailures         int              `mapstructure:"max_failures"`
	RecoveryThreshold   int              `mapstructure:"recovery_threshold"`
}

// UpstreamConfig defines one Bostrom LCD endpoint in a failover set.
type UpstreamConfig struct {
	Name    string        `mapstructure:"name"`
	LCDURL  string        `mapstructure:"lcd_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Weight  int           `mapstructure:"weight"`
}

// RedisConfig defines Redis connection settings for mining-session persistence.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotifyConfig defines webhook notification settings for proof-found,
// proof-submission-failed and upstream-degraded events.
type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramURL  string `mapstructure:"telegram_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
}

// APIConfig defines the status HTTP API server settings.
type APIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Bind        string        `mapstructure:"bind"`
	StatsCache  time.Duration `mapstructure:"stats_cache"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

// SecurityConfig defines request-rate guarding for the status API.
type SecurityConfig struct {
	MaxRequestsPerIP int           `mapstructure:"max_requests_per_ip"`
	BanThreshold     int           `mapstructure:"ban_threshold"`
	BanDuration      time.Duration `mapstructure:"ban_duration"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ProfilingConfig defines the optional pprof debug server.
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// NewRelicConfig defines optional APM instrumentation.
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/uhashminer")
	}

	v.SetEnvPrefix("UHASH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.threads", 0) // 0 -> runtime.NumCPU()
	v.SetDefault("mining.refresh_interval", "5s")
	v.SetDefault("mining.hashrate_interval", "5s")
	v.SetDefault("mining.single_shot", false)

	v.SetDefault("node.url", "https://rpc.bostrom.cybernode.ai")
	v.SetDefault("node.lcd_url", "https://lcd.bostrom.cybernode.ai")
	v.SetDefault("node.contract_address", "bostrom1qwys5wj3r4lry7dl74ukn5unhdpa6t397h097q36dqvrp5qgvjxqverdlf")
	v.SetDefault("node.timeout", "10s")
	v.SetDefault("node.health_check_interval", "5s")
	v.SetDefault("node.health_check_timeout", "3s")
	v.SetDefault("node.max_failures", 3)
	v.SetDefault("node.recovery_threshold", 2)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notify.enabled", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "0.0.0.0:8080")
	v.SetDefault("api.stats_cache", "5s")
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("security.max_requests_per_ip", 60)
	v.SetDefault("security.ban_threshold", 10)
	v.SetDefault("security.ban_duration", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	v.SetDefault("newrelic.enabled", false)
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Mining.Address == "" {
		return fmt.Errorf("mining.address is required")
	}
	if !isValidBostromAddress(c.Mining.Address) {
		return fmt.Errorf("mining.address is not a valid Bostrom address")
	}

	if c.Node.URL == "" && c.Node.LCDURL == "" && len(c.Node.Upstreams) == 0 {
		return fmt.Errorf("node.lcd_url or node.upstreams is required")
	}

	if c.Mining.RefreshInterval <= 0 {
		return fmt.Errorf("mining.refresh_interval must be positive")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is enabled")
	}

	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		return fmt.Errorf("newrelic.license_key is required when newrelic is enabled")
	}

	return nil
}

func isValidBostromAddress(addr string) bool {
	if len(addr) < 14 {
		return false
	}
	return addr[:8] == "bostrom1"
}
