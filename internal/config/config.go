package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Reminder interval units
const (
	UnitDays    = "days"
	UnitMinutes = "minutes"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// Log encodings
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	// Level is a zap level name: debug, info, warn or error
	Level string `mapstructure:"level"`
	// OutputPath is stdout, stderr or a file path
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
	// Service is attached to every entry
	Service string `mapstructure:"service"`
}

// WorkflowConfig tunes command behavior
type WorkflowConfig struct {
	// UndoApprovalDaysLimit bounds UndoExpenseApproval; 0 means unlimited
	UndoApprovalDaysLimit int           `mapstructure:"undo_approval_days_limit"`
	DedupWindow           time.Duration `mapstructure:"dedup_window"`
}

// ReminderConfig configures the expense reminder sweep
type ReminderConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	IntervalValue int           `mapstructure:"interval_value"`
	IntervalUnit  string        `mapstructure:"interval_unit"`
	SweepEvery    time.Duration `mapstructure:"sweep_every"`
	SweepTimeout  time.Duration `mapstructure:"sweep_timeout"`
}

// Interval returns how long a trip waits between reminders
func (r ReminderConfig) Interval() time.Duration {
	if r.IntervalUnit == UnitMinutes {
		return time.Duration(r.IntervalValue) * time.Minute
	}
	return time.Duration(r.IntervalValue) * 24 * time.Hour
}

// DirectoryConfig seeds the user directory
type DirectoryConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// DefaultApprover pins the travel approver; empty takes the first travel_approver member
	DefaultApprover string     `mapstructure:"default_approver"`
	Users           []UserSeed `mapstructure:"users"`
}

// UserSeed is one configured directory entry
type UserSeed struct {
	ID         string   `mapstructure:"id"`
	Name       string   `mapstructure:"name"`
	Groups     []string `mapstructure:"groups"`
	LarkOpenID string   `mapstructure:"lark_open_id"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	AppID         string        `mapstructure:"app_id"`
	AppSecret     string        `mapstructure:"app_secret"`
	International bool          `mapstructure:"international"`
	APITimeout    time.Duration `mapstructure:"api_timeout"`
}

// ArchiveConfig configures where completed trips' budget workbooks are kept
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Load reads configuration from configPath, when given, and TRIP_* environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/trips.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", LogFormatJSON)
	v.SetDefault("logger.service", "trip-approval")

	v.SetDefault("workflow.undo_approval_days_limit", 7)
	v.SetDefault("workflow.dedup_window", 5*time.Minute)

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.interval_value", 7)
	v.SetDefault("reminder.interval_unit", UnitDays)
	v.SetDefault("reminder.sweep_every", 5*time.Minute)
	v.SetDefault("reminder.sweep_timeout", time.Minute)

	v.SetDefault("directory.cache_ttl", 5*time.Minute)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.dir", "data/reports")

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.api_timeout", 30*time.Second)
}

// bindEnvVars binds the credentials the Lark console hands out under their usual names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "TRIP_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "TRIP_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}

	switch c.Logger.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logger.level %q is not one of debug, info, warn, error", c.Logger.Level))
	}
	if c.Logger.Format != "" && c.Logger.Format != LogFormatJSON && c.Logger.Format != LogFormatConsole {
		errs = append(errs, fmt.Errorf("logger.format must be %q or %q, got %q", LogFormatJSON, LogFormatConsole, c.Logger.Format))
	}

	if c.Workflow.UndoApprovalDaysLimit < 0 {
		errs = append(errs, fmt.Errorf("workflow.undo_approval_days_limit must not be negative"))
	}
	if c.Workflow.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("workflow.dedup_window must be positive"))
	}

	if c.Reminder.IntervalValue <= 0 {
		errs = append(errs, fmt.Errorf("reminder.interval_value must be positive"))
	}
	if c.Reminder.IntervalUnit != UnitDays && c.Reminder.IntervalUnit != UnitMinutes {
		errs = append(errs, fmt.Errorf("reminder.interval_unit must be %q or %q, got %q", UnitDays, UnitMinutes, c.Reminder.IntervalUnit))
	}
	if c.Reminder.SweepEvery <= 0 {
		errs = append(errs, fmt.Errorf("reminder.sweep_every must be positive"))
	}

	seen := make(map[string]bool, len(c.Directory.Users))
	for i, u := range c.Directory.Users {
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("directory.users[%d].id is required", i))
			continue
		}
		if seen[u.ID] {
			errs = append(errs, fmt.Errorf("directory.users: duplicate id %q", u.ID))
		}
		seen[u.ID] = true
	}
	if c.Directory.DefaultApprover != "" && len(c.Directory.Users) > 0 && !seen[c.Directory.DefaultApprover] {
		errs = append(errs, fmt.Errorf("directory.default_approver %q is not a configured user", c.Directory.DefaultApprover))
	}

	if c.Archive.Enabled && c.Archive.Dir == "" {
		errs = append(errs, fmt.Errorf("archive.dir is required when the archive is enabled"))
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			errs = append(errs, fmt.Errorf("lark.app_id is required when lark is enabled"))
		}
		if c.Lark.AppSecret == "" {
			errs = append(errs, fmt.Errorf("lark.app_secret is required when lark is enabled"))
		}
	}

	return errors.Join(errs...)
}
