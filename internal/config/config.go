package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the dataset store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig configures where raw records come from.
type SourcesConfig struct {
	RawDir       string       `yaml:"raw_dir" mapstructure:"raw_dir"`
	AdaptersPath string       `yaml:"adapters_path" mapstructure:"adapters_path"`
	Sheet        SheetConfig  `yaml:"sheet" mapstructure:"sheet"`
	Feeds        []FeedConfig `yaml:"feeds" mapstructure:"feeds"`
}

// SheetConfig configures ingestion of the pre-existing master spreadsheet.
type SheetConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
	SkipRows  int    `yaml:"skip_rows" mapstructure:"skip_rows"`
}

// FeedConfig configures one HTTP JSON feed source.
type FeedConfig struct {
	SourceID    string  `yaml:"source_id" mapstructure:"source_id"`
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ResolveConfig tunes identity resolution.
type ResolveConfig struct {
	MatchThreshold  float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	AmbiguityMargin float64 `yaml:"ambiguity_margin" mapstructure:"ambiguity_margin"`
}

// JobConfig configures one scheduled job.
type JobConfig struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// SchedulerConfig configures the orchestration loop.
type SchedulerConfig struct {
	Reconcile JobConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Report    JobConfig `yaml:"report" mapstructure:"report"`
	Backup    JobConfig `yaml:"backup" mapstructure:"backup"`
	Cleanup   JobConfig `yaml:"cleanup" mapstructure:"cleanup"`

	PidFile             string `yaml:"pid_file" mapstructure:"pid_file"`
	BackupDir           string `yaml:"backup_dir" mapstructure:"backup_dir"`
	LogDir              string `yaml:"log_dir" mapstructure:"log_dir"`
	LogRetentionDays    int    `yaml:"log_retention_days" mapstructure:"log_retention_days"`
	BackupRetentionDays int    `yaml:"backup_retention_days" mapstructure:"backup_retention_days"`
}

// NotifyConfig configures job notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ReportConfig configures change-report output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	// Environment
	v.SetEnvPrefix("MISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/missions.db")
	v.SetDefault("sources.raw_dir", "data/raw")
	v.SetDefault("sources.adapters_path", "config/adapters.yaml")
	v.SetDefault("sources.sheet.skip_rows", 1)
	v.SetDefault("resolve.match_threshold", 0.82)
	v.SetDefault("resolve.ambiguity_margin", 0.05)
	v.SetDefault("scheduler.reconcile.schedule", "0 2 * * *")
	v.SetDefault("scheduler.reconcile.enabled", true)
	v.SetDefault("scheduler.report.schedule", "30 2 * * *")
	v.SetDefault("scheduler.report.enabled", true)
	v.SetDefault("scheduler.backup.schedule", "0 3 * * 0")
	v.SetDefault("scheduler.backup.enabled", true)
	v.SetDefault("scheduler.cleanup.schedule", "0 4 * * 1")
	v.SetDefault("scheduler.cleanup.enabled", true)
	v.SetDefault("scheduler.pid_file", "data/mission-cli.pid")
	v.SetDefault("scheduler.backup_dir", "backups")
	v.SetDefault("scheduler.log_dir", "logs")
	v.SetDefault("scheduler.log_retention_days", 30)
	v.SetDefault("scheduler.backup_retention_days", 7)
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
