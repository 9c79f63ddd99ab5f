package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teamsbot/internal/agent"
	"teamsbot/internal/card"
	"teamsbot/internal/config"
	"teamsbot/internal/store"
	"teamsbot/internal/teamsapp"
	"teamsbot/internal/webhook"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "teamsbot",
		Short: "Teams webhook relay for weather, time, and traffic",
		Long:  "teamsbot receives Microsoft Teams webhook activities, routes them to agents, and replies with Adaptive Cards.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.teamsbot/config.json)")

	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(packageCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// newLogger builds the logger described by the log config section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and app manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			manifestPath := filepath.Join(cfgDir, "manifest.json")
			if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
				appID := cfg.Teams.AppID
				if appID == "" {
					appID = "00000000-0000-0000-0000-000000000000"
				}
				if err := teamsapp.DefaultManifest(appID).Save(manifestPath); err != nil {
					return err
				}
				logger.Info("manifest scaffolded", "path", manifestPath)
			}

			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Starts the Teams webhook server. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	logger = newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := agent.LoadCatalog(cfg.Agents.CatalogPath, logger)
	registry := agent.NewRegistry(agent.RegistryConfig{
		WeatherTime: agent.NewWeatherTime(catalog, logger),
		Traffic:     agent.NewTraffic(catalog, logger),
		Logger:      logger,
	})

	var deliveries *store.SQLiteStore
	if cfg.Store.Enabled {
		deliveries, err = store.NewSQLiteStore(cfg.Store.DBPath, logger)
		if err != nil {
			logger.Warn("delivery store unavailable, auditing disabled", "err", err)
			deliveries = nil
		} else {
			defer deliveries.Close()
		}
	}

	serverCfg := webhook.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		WebhookPath:     cfg.Server.WebhookPath,
		Secret:          cfg.Teams.WebhookSecret,
		BotID:           cfg.Teams.AppID,
		BotName:         cfg.Teams.BotName,
		RequestTimeout:  time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Version:         version,
		Logger:          logger,
		Dispatcher:      registry,
		Renderer:        card.NewFormatter(),
	}
	if deliveries != nil {
		serverCfg.Recorder = deliveries
	}
	server := webhook.NewServer(serverCfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	if deliveries != nil {
		g.Go(func() error {
			return pruneLoop(gctx, deliveries)
		})
	}

	logger.Info("teamsbot started. Press Ctrl+C to stop.", "version", version)
	return g.Wait()
}

// deliveryRetention bounds how long audit rows are kept.
const deliveryRetention = 30 * 24 * time.Hour

func pruneLoop(ctx context.Context, deliveries *store.SQLiteStore) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := deliveries.Prune(ctx, deliveryRetention); err != nil {
				logger.Warn("delivery prune failed", "err", err)
			}
		}
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show relay status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			logger.Info("server",
				"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				"webhook_path", cfg.Server.WebhookPath,
				"signature_check", cfg.Teams.WebhookSecret != "",
			)

			if !cfg.Store.Enabled {
				logger.Info("delivery store", "enabled", false)
				return nil
			}
			deliveries, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Warn("delivery store", "enabled", true, "err", err)
				return nil
			}
			defer deliveries.Close()

			stats, err := deliveries.Stats(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("deliveries",
				"total", stats.Total,
				"ok", stats.ByOutcome[store.OutcomeOK],
				"errors", stats.ByOutcome[store.OutcomeError],
				"timeouts", stats.ByOutcome[store.OutcomeTimeout],
				"ignored", stats.ByOutcome[store.OutcomeIgnored],
			)
			for intent, n := range stats.ByIntent {
				logger.Info("intent", "name", intent, "count", n)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. server.port 9090)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func packageCmd() *cobra.Command {
	var dir, out, baseURL string

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Build the Teams app package (.zip)",
		Long:  "Validates manifest.json, ensures icons exist, and zips everything into a sideloadable app package.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL != "" {
				manifestPath := filepath.Join(dir, "manifest.json")
				manifest, err := teamsapp.LoadManifest(manifestPath)
				if err != nil {
					return err
				}
				manifest.SetEndpoint(baseURL)
				if err := manifest.Save(manifestPath); err != nil {
					return err
				}
				logger.Info("manifest endpoint updated", "url", baseURL)
			}

			packager := teamsapp.NewPackager(dir, logger)
			_, err := packager.Build(out)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding manifest.json and icons")
	cmd.Flags().StringVar(&out, "out", "weather-bot.zip", "output package path")
	cmd.Flags().StringVar(&baseURL, "url", "", "deployed base URL to write into the manifest before packaging")

	return cmd
}
