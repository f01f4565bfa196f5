package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Mining: MiningConfig{
					Address:         "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
					RefreshInterval: 5 * time.Second,
				},
				Node: NodeConfig{
					LCDURL: "https://lcd.bostrom.cybernode.ai",
				},
			},
			wantErr: false,
		},
		{
			name:    "missing address",
			config:  Config{Mining: MiningConfig{RefreshInterval: 5 * time.Second}},
			wantErr: true,
			errMsg:  "mining.address is required",
		},
		{
			name: "invalid address prefix",
			config: Config{
				Mining: MiningConfig{Address: "tos1notbostrom", RefreshInterval: 5 * time.Second},
			},
			wantErr: true,
			errMsg:  "mining.address is not a valid Bostrom address",
		},
		{
			name: "missing node endpoint",
			config: Config{
				Mining: MiningConfig{
					Address:         "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
					RefreshInterval: 5 * time.Second,
				},
			},
			wantErr: true,
			errMsg:  "node.lcd_url or node.upstreams is required",
		},
		{
			name: "zero refresh interval",
			config: Config{
				Mining: MiningConfig{Address: "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk"},
				Node:   NodeConfig{LCDURL: "https://lcd.bostrom.cybernode.ai"},
			},
			wantErr: true,
			errMsg:  "mining.refresh_interval must be positive",
		},
		{
			name: "redis enabled without url",
			config: Config{
				Mining: MiningConfig{
					Address:         "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
					RefreshInterval: 5 * time.Second,
				},
				Node:  NodeConfig{LCDURL: "https://lcd.bostrom.cybernode.ai"},
				Redis: RedisConfig{Enabled: true},
			},
			wantErr: true,
			errMsg:  "redis.url is required when redis is enabled",
		},
		{
			name: "newrelic enabled without license key",
			config: Config{
				Mining: MiningConfig{
					Address:         "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
					RefreshInterval: 5 * time.Second,
				},
				Node:     NodeConfig{LCDURL: "https://lcd.bostrom.cybernode.ai"},
				NewRelic: NewRelicConfig{Enabled: true},
			},
			wantErr: true,
			errMsg:  "newrelic.license_key is required when newrelic is enabled",
		},
		{
			name: "valid config with upstreams only",
			config: Config{
				Mining: MiningConfig{
					Address:         "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
					RefreshInterval: 5 * time.Second,
				},
				Node: NodeConfig{
					Upstreams: []UpstreamConfig{
						{Name: "primary", LCDURL: "https://lcd1.example.com"},
						{Name: "backup", LCDURL: "https://lcd2.example.com"},
					},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if tt.errMsg != "" && err.Error() != tt.errMsg {
					t.Errorf("error = %q, want %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigStructs(t *testing.T) {
	mining := MiningConfig{
		Address:            "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk",
		Threads:            8,
		DifficultyOverride: 20,
		RefreshInterval:    5 * time.Second,
		HashrateInterval:   5 * time.Second,
		SingleShot:         false,
	}
	if mining.Threads != 8 {
		t.Errorf("MiningConfig.Threads = %d, want 8", mining.Threads)
	}

	node := NodeConfig{
		LCDURL:              "https://lcd.bostrom.cybernode.ai",
		ContractAddress:     "bostrom1qwys5wj3r4lry7dl74ukn5unhdpa6t397h097q36dqvrp5qgvjxqverdlf",
		Timeout:             10 * time.Second,
		HealthCheckInterval: 5 * time.Second,
		HealthCheckTimeout:  3 * time.Second,
		MaxFailures:         3,
		RecoveryThreshold:   2,
	}
	if node.MaxFailures != 3 {
		t.Errorf("NodeConfig.MaxFailures = %d, want 3", node.MaxFailures)
	}

	upstream := UpstreamConfig{
		Name:    "primary",
		LCDURL:  "https://lcd1.example.com",
		Timeout: 10 * time.Second,
		Weight:  10,
	}
	if upstream.Weight != 10 {
		t.Errorf("UpstreamConfig.Weight = %d, want 10", upstream.Weight)
	}

	redis := RedisConfig{Enabled: true, URL: "localhost:6379", DB: 1}
	if redis.DB != 1 {
		t.Errorf("RedisConfig.DB = %d, want 1", redis.DB)
	}

	notify := NotifyConfig{
		Enabled:      true,
		DiscordURL:   "https://discord.com/api/webhooks/...",
		TelegramBot:  "bot_token",
		TelegramChat: "chat_id",
	}
	if !notify.Enabled {
		t.Error("NotifyConfig.Enabled should be true")
	}

	api := APIConfig{
		Enabled:     true,
		Bind:        "0.0.0.0:8080",
		StatsCache:  10 * time.Second,
		CORSOrigins: []string{"*"},
	}
	if api.Bind != "0.0.0.0:8080" {
		t.Errorf("APIConfig.Bind = %s, want 0.0.0.0:8080", api.Bind)
	}

	security := SecurityConfig{
		MaxRequestsPerIP: 60,
		BanThreshold:     10,
		BanDuration:      10 * time.Minute,
	}
	if security.MaxRequestsPerIP != 60 {
		t.Errorf("SecurityConfig.MaxRequestsPerIP = %d, want 60", security.MaxRequestsPerIP)
	}

	log := LogConfig{Level: "debug", Format: "json", File: "/var/log/uhashminer.log"}
	if log.Level != "debug" {
		t.Errorf("LogConfig.Level = %s, want debug", log.Level)
	}

	profiling := ProfilingConfig{Enabled: true, Bind: "127.0.0.1:6060"}
	if !profiling.Enabled {
		t.Error("ProfilingConfig.Enabled should be true")
	}

	newrelic := NewRelicConfig{Enabled: true, AppName: "uhashminer", LicenseKey: "key"}
	if newrelic.AppName != "uhashminer" {
		t.Errorf("NewRelicConfig.AppName = %s, want uhashminer", newrelic.AppName)
	}
}

func TestLoadWithTempConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mining:
  address: "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk"
  threads: 4
  refresh_interval: 5s

node:
  lcd_url: "https://lcd.bostrom.cybernode.ai"
  timeout: 10s
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mining.Address != "bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk" {
		t.Errorf("Mining.Address = %s, want bostrom1s7fuy43h8v6hzjtulx9gxyp30rl9t5cz3z56mk", cfg.Mining.Address)
	}
	if cfg.Mining.Threads != 4 {
		t.Errorf("Mining.Threads = %d, want 4", cfg.Mining.Threads)
	}
	if cfg.Node.LCDURL != "https://lcd.bostrom.cybernode.ai" {
		t.Errorf("Node.LCDURL = %s, want https://lcd.bostrom.cybernode.ai", cfg.Node.LCDURL)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Missing required mining.address
	configContent := `
node:
  lcd_url: "https://lcd.bostrom.cybernode.ai"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadNonexistentConfig(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() should return error for non-existent config")
	}
}
