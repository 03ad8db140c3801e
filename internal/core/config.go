// Package core contains the task graph engine (hierarchy, dependency graph
// and schedule) together with the configuration and service layer that bind
// it to a task store.
package core

import (
	"fmt"
	"strings"

	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/viper"
)

// ConfigurationManager defines the interface for loading and validating
// configuration from the .taskconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .taskconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Engine:          models.DefaultEngineConfig(),
		DefaultPriority: models.PriorityMedium,
		StoreDriver:     models.StoreDriverYAML,
		StorePath:       "tasks.yaml",
		EventsEnabled:   true,
		Alerts: models.AlertConfig{
			StaleDays:        3,
			MaxOpenTasks:     25,
			MaxRejectedEdges: 5,
		},
	}
}

// LoadGlobalConfig reads the .taskconfig file from the base path using Viper.
// If the file does not exist, sensible defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".taskconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("V3T")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("hierarchy.max_level", cfg.Engine.MaxLevel)
	v.SetDefault("hierarchy.order_spacing", cfg.Engine.OrderSpacing)
	v.SetDefault("schedule.default_duration_days", cfg.Engine.DefaultDurationDays)
	v.SetDefault("schedule.min_duration_days", cfg.Engine.MinDurationDays)
	v.SetDefault("timeline.padding_days", cfg.Engine.TimelinePaddingDays)
	v.SetDefault("timeline.empty_days", cfg.Engine.EmptyTimelineDays)
	v.SetDefault("timeline.granularity", string(cfg.Engine.DefaultGranularity))
	v.SetDefault("defaults.priority", string(cfg.DefaultPriority))
	v.SetDefault("store.driver", cfg.StoreDriver)
	v.SetDefault("store.path", cfg.StorePath)
	v.SetDefault("events.enabled", cfg.EventsEnabled)
	v.SetDefault("alerts.stale_days", cfg.Alerts.StaleDays)
	v.SetDefault("alerts.max_open_tasks", cfg.Alerts.MaxOpenTasks)
	v.SetDefault("alerts.max_rejected_edges", cfg.Alerts.MaxRejectedEdges)
	v.SetDefault("notify.slack_webhook", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading .taskconfig: %w", err)
		}
		// No config file: defaults and environment overrides still apply.
	}

	cfg.Engine = models.EngineConfig{
		MaxLevel:            v.GetInt("hierarchy.max_level"),
		OrderSpacing:        v.GetFloat64("hierarchy.order_spacing"),
		DefaultDurationDays: v.GetInt("schedule.default_duration_days"),
		MinDurationDays:     v.GetInt("schedule.min_duration_days"),
		TimelinePaddingDays: v.GetInt("timeline.padding_days"),
		EmptyTimelineDays:   v.GetInt("timeline.empty_days"),
		DefaultGranularity:  models.Granularity(v.GetString("timeline.granularity")),
	}
	cfg.DefaultPriority = models.Priority(v.GetString("defaults.priority"))
	cfg.StoreDriver = v.GetString("store.driver")
	cfg.StorePath = v.GetString("store.path")
	cfg.EventsEnabled = v.GetBool("events.enabled")
	cfg.Alerts = models.AlertConfig{
		StaleDays:        v.GetInt("alerts.stale_days"),
		MaxOpenTasks:     v.GetInt("alerts.max_open_tasks"),
		MaxRejectedEdges: v.GetInt("alerts.max_rejected_edges"),
	}
	cfg.SlackWebhook = v.GetString("notify.slack_webhook")

	return cfg, nil
}

// ValidateConfig checks the provided configuration for invalid values and
// returns a clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string
	e := cfg.Engine

	if e.MaxLevel <= 0 {
		errs = append(errs, fmt.Sprintf("hierarchy.max_level must be positive, got %d", e.MaxLevel))
	}
	if e.OrderSpacing <= 0 {
		errs = append(errs, fmt.Sprintf("hierarchy.order_spacing must be positive, got %g", e.OrderSpacing))
	}
	if e.DefaultDurationDays <= 0 {
		errs = append(errs, fmt.Sprintf("schedule.default_duration_days must be positive, got %d", e.DefaultDurationDays))
	}
	if e.MinDurationDays <= 0 {
		errs = append(errs, fmt.Sprintf("schedule.min_duration_days must be positive, got %d", e.MinDurationDays))
	}
	if e.TimelinePaddingDays < 0 {
		errs = append(errs, fmt.Sprintf("timeline.padding_days must be non-negative, got %d", e.TimelinePaddingDays))
	}
	if e.EmptyTimelineDays <= 0 {
		errs = append(errs, fmt.Sprintf("timeline.empty_days must be positive, got %d", e.EmptyTimelineDays))
	}
	if _, err := ParseGranularity(string(e.DefaultGranularity)); err != nil {
		errs = append(errs, fmt.Sprintf("timeline.granularity %q is invalid, must be one of: day, week, month", e.DefaultGranularity))
	}
	if cfg.DefaultPriority != "" && !cfg.DefaultPriority.IsValid() {
		errs = append(errs, fmt.Sprintf(
			"defaults.priority %q is invalid, must be one of: low, medium, high, urgent",
			cfg.DefaultPriority,
		))
	}
	if cfg.Alerts.StaleDays <= 0 {
		errs = append(errs, fmt.Sprintf("alerts.stale_days must be positive, got %d", cfg.Alerts.StaleDays))
	}
	if cfg.Alerts.MaxOpenTasks < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_open_tasks must be non-negative, got %d", cfg.Alerts.MaxOpenTasks))
	}
	if cfg.Alerts.MaxRejectedEdges < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_rejected_edges must be non-negative, got %d", cfg.Alerts.MaxRejectedEdges))
	}
	if cfg.StoreDriver != models.StoreDriverYAML && cfg.StoreDriver != models.StoreDriverSQLite {
		errs = append(errs, fmt.Sprintf("store.driver %q is invalid, must be one of: yaml, sqlite", cfg.StoreDriver))
	}
	if cfg.StorePath == "" {
		errs = append(errs, "store.path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
