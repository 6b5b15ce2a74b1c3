package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/trips.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Workflow.UndoApprovalDaysLimit)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.DedupWindow)
	assert.True(t, cfg.Reminder.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Reminder.Interval())
	assert.False(t, cfg.Lark.Enabled)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "data/reports", cfg.Archive.Dir)
	assert.Equal(t, LogFormatJSON, cfg.Logger.Format)
	assert.Equal(t, "trip-approval", cfg.Logger.Service)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
logger:
  level: debug
  format: console
  service: trips-eu
reminder:
  interval_value: 30
  interval_unit: minutes
directory:
  default_approver: bob
  users:
    - id: alice
      name: Alice
    - id: bob
      name: Bob
      groups: [travel_approver, finance]
      lark_open_id: ou_bob
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, LogFormatConsole, cfg.Logger.Format)
	assert.Equal(t, "trips-eu", cfg.Logger.Service)
	assert.Equal(t, 30*time.Minute, cfg.Reminder.Interval())
	require.Len(t, cfg.Directory.Users, 2)
	assert.Equal(t, []string{"travel_approver", "finance"}, cfg.Directory.Users[1].Groups)
	assert.Equal(t, "ou_bob", cfg.Directory.Users[1].LarkOpenID)
	assert.Equal(t, "bob", cfg.Directory.DefaultApprover)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRIP_SERVER_PORT", "7070")
	t.Setenv("TRIP_LARK_ENABLED", "true")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Lark.Enabled)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
	assert.Equal(t, "secret", cfg.Lark.AppSecret)
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "trips.db"},
		Workflow: WorkflowConfig{DedupWindow: time.Minute},
		Reminder: ReminderConfig{IntervalValue: 1, IntervalUnit: UnitDays, SweepEvery: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"negative undo limit", func(c *Config) { c.Workflow.UndoApprovalDaysLimit = -1 }, "undo_approval_days_limit"},
		{"unknown unit", func(c *Config) { c.Reminder.IntervalUnit = "weeks" }, "interval_unit"},
		{"zero interval", func(c *Config) { c.Reminder.IntervalValue = 0 }, "interval_value"},
		{"duplicate user", func(c *Config) {
			c.Directory.Users = []UserSeed{{ID: "a"}, {ID: "a"}}
		}, "duplicate id"},
		{"unknown default approver", func(c *Config) {
			c.Directory.Users = []UserSeed{{ID: "a"}}
			c.Directory.DefaultApprover = "b"
		}, "default_approver"},
		{"unknown log level", func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		{"unknown log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"archive without dir", func(c *Config) { c.Archive.Enabled = true }, "archive.dir"},
		{"lark without credentials", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
