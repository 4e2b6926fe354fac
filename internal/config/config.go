package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/tabcurator/tabcurator/internal/pathutil"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Host      HostConfig      `koanf:"host"`
	Channel   ChannelConfig   `koanf:"channel"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Curator   CuratorConfig   `koanf:"curator"`
	Daemon    DaemonConfig    `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	RequestTimeout  string `koanf:"request_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// HostConfig describes the browser host backing the adapter.
type HostConfig struct {
	StoragePath     string `koanf:"storage_path"`
	DiscardCapable  bool   `koanf:"discard_capable"`
	EventBufferSize int    `koanf:"event_buffer_size"`
}

type ChannelConfig struct {
	MaxQueueSize   int    `koanf:"max_queue_size"`
	BatchSize      int    `koanf:"batch_size"`
	MessageTimeout string `koanf:"message_timeout"`
	RetryDelay     string `koanf:"retry_delay"`
	MaxRetries     int    `koanf:"max_retries"`
	CooldownWindow string `koanf:"cooldown_window"`
}

type SchedulerConfig struct {
	SweepSchedule   string `koanf:"sweep_schedule"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
	PromptTimeout   string `koanf:"prompt_timeout"`
}

// CuratorConfig holds bootstrap defaults; the live values are persisted
// through the host storage area and may be changed at runtime.
type CuratorConfig struct {
	InactiveThresholdMinutes int `koanf:"inactive_threshold_minutes"`
	TabLimit                 int `koanf:"tab_limit"`
}

type DaemonConfig struct {
	ShutdownTimeout     string `koanf:"shutdown_timeout"`
	HealthCheckInterval string `koanf:"health_check_interval"`
	StatePath           string `koanf:"state_path"`
}

const (
	DefaultServerPort             = 8732
	DefaultServerLogLevel         = "info"
	DefaultServerRequestTimeout   = "10s"
	DefaultServerShutdownTimeout  = "5s"
	DefaultHostDiscardCapable     = true
	DefaultHostEventBufferSize    = 256
	DefaultChannelMaxQueueSize    = 100
	DefaultChannelBatchSize       = 10
	DefaultChannelMessageTimeout  = "5s"
	DefaultChannelRetryDelay      = "1s"
	DefaultChannelMaxRetries      = 5
	DefaultChannelCooldownWindow  = "30s"
	DefaultSchedulerSweepSchedule = "@every 5m"
	DefaultSchedulerShutdown      = "30s"
	DefaultSchedulerPromptTimeout = "2m"
	DefaultInactiveThresholdMin   = 60
	DefaultTabLimit               = 100
	DefaultDaemonShutdownTimeout  = "30s"
	DefaultDaemonHealthInterval   = "30s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                       DefaultServerPort,
		"server.log_level":                  DefaultServerLogLevel,
		"server.request_timeout":            DefaultServerRequestTimeout,
		"server.shutdown_timeout":           DefaultServerShutdownTimeout,
		"host.storage_path":                 "",
		"host.discard_capable":              DefaultHostDiscardCapable,
		"host.event_buffer_size":            DefaultHostEventBufferSize,
		"channel.max_queue_size":            DefaultChannelMaxQueueSize,
		"channel.batch_size":                DefaultChannelBatchSize,
		"channel.message_timeout":           DefaultChannelMessageTimeout,
		"channel.retry_delay":               DefaultChannelRetryDelay,
		"channel.max_retries":               DefaultChannelMaxRetries,
		"channel.cooldown_window":           DefaultChannelCooldownWindow,
		"scheduler.sweep_schedule":          DefaultSchedulerSweepSchedule,
		"scheduler.shutdown_timeout":        DefaultSchedulerShutdown,
		"scheduler.prompt_timeout":          DefaultSchedulerPromptTimeout,
		"curator.inactive_threshold_minutes": DefaultInactiveThresholdMin,
		"curator.tab_limit":                 DefaultTabLimit,
		"daemon.shutdown_timeout":           DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":      DefaultDaemonHealthInterval,
		"daemon.state_path":                 filepath.Join(os.Getenv("HOME"), ".tabcurator"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".tabcurator", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("TABCURATOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TABCURATOR_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	statePath, err := pathutil.Expand(cfg.Daemon.StatePath)
	if err != nil {
		return nil, err
	}
	cfg.Daemon.StatePath = statePath

	storagePath, err := pathutil.Expand(cfg.Host.StoragePath)
	if err != nil {
		return nil, err
	}
	cfg.Host.StoragePath = storagePath

	if cfg.Host.StoragePath == "" {
		cfg.Host.StoragePath = filepath.Join(cfg.Daemon.StatePath, "storage.json")
	}

	return &cfg, nil
}
