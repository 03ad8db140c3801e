package models

// EngineConfig holds the tunables of the task graph engine.
type EngineConfig struct {
	MaxLevel            int         `yaml:"max_level" mapstructure:"max_level"`
	OrderSpacing        float64     `yaml:"order_spacing" mapstructure:"order_spacing"`
	DefaultDurationDays int         `yaml:"default_duration_days" mapstructure:"default_duration_days"`
	MinDurationDays     int         `yaml:"min_duration_days" mapstructure:"min_duration_days"`
	TimelinePaddingDays int         `yaml:"padding_days" mapstructure:"padding_days"`
	EmptyTimelineDays   int         `yaml:"empty_days" mapstructure:"empty_days"`
	DefaultGranularity  Granularity `yaml:"granularity" mapstructure:"granularity"`
}

// DefaultEngineConfig returns the engine settings used when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxLevel:            3,
		OrderSpacing:        1000,
		DefaultDurationDays: 7,
		MinDurationDays:     1,
		TimelinePaddingDays: 7,
		EmptyTimelineDays:   30,
		DefaultGranularity:  GranularityWeek,
	}
}

// Task store drivers.
const (
	StoreDriverYAML   = "yaml"
	StoreDriverSQLite = "sqlite"
)

// GlobalConfig holds system-wide settings read from .taskconfig via Viper.
type GlobalConfig struct {
	Engine          EngineConfig `yaml:"engine" mapstructure:"engine"`
	DefaultPriority Priority     `yaml:"default_priority" mapstructure:"default_priority"`
	StoreDriver     string       `yaml:"store_driver" mapstructure:"store_driver"`
	StorePath       string       `yaml:"store_path" mapstructure:"store_path"`
	EventsEnabled   bool         `yaml:"events_enabled" mapstructure:"events_enabled"`
	Alerts          AlertConfig  `yaml:"alerts" mapstructure:"alerts"`
	SlackWebhook    string       `yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
}

// AlertConfig holds the thresholds used when evaluating alerts over the
// event log.
type AlertConfig struct {
	StaleDays        int `yaml:"stale_days" mapstructure:"stale_days"`
	MaxOpenTasks     int `yaml:"max_open_tasks" mapstructure:"max_open_tasks"`
	MaxRejectedEdges int `yaml:"max_rejected_edges" mapstructure:"max_rejected_edges"`
}
