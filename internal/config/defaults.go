package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8080,
			WebhookPath:           "/api/teams/webhook",
			RequestTimeoutSeconds: 30,
		},
		Teams: TeamsConfig{
			BotName: "Teams Weather Bot",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Enabled: true,
			DBPath:  filepath.Join(DefaultConfigDir(), "deliveries.db"),
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
