package config

import "time"

// CurrentConfigVersion is the schema version for the settings file.
// Increment when making breaking changes to the file structure.
const CurrentConfigVersion = 1

// Config represents the complete ~/.pgcenterrc settings file.
type Config struct {
	Version        int            `yaml:"version" mapstructure:"version"`
	Interval       time.Duration  `yaml:"interval" mapstructure:"interval"`
	SignalTimeout  time.Duration  `yaml:"signal_timeout" mapstructure:"signal_timeout"`
	ConnectTimeout time.Duration  `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration  `yaml:"query_timeout" mapstructure:"query_timeout"`
	LogFile        string         `yaml:"log_file" mapstructure:"log_file"`
	ScreenLogDir   string         `yaml:"screen_log_dir" mapstructure:"screen_log_dir"`
	SSHHost        string         `yaml:"ssh_host,omitempty" mapstructure:"ssh_host"`
	NoColor        bool           `yaml:"no_color,omitempty" mapstructure:"no_color"`
	Screens        []ScreenConfig `yaml:"screens" mapstructure:"screens"`
}

// ScreenConfig is the last-used connection of one screen slot. Passwords are
// never written; use PGPASSWORD or ~/.pgpass.
type ScreenConfig struct {
	// Slot is the screen number, 1..8.
	Slot int `yaml:"slot" mapstructure:"slot"`

	Host   string `yaml:"host,omitempty" mapstructure:"host"`
	Port   int    `yaml:"port,omitempty" mapstructure:"port"`
	User   string `yaml:"user,omitempty" mapstructure:"user"`
	DBName string `yaml:"dbname,omitempty" mapstructure:"dbname"`

	// Context is the short name of the statistics view shown on open,
	// e.g. "databases" or "activity".
	Context string `yaml:"context,omitempty" mapstructure:"context"`

	// MinAge is the age filter for long activity and group signals.
	MinAge string `yaml:"min_age,omitempty" mapstructure:"min_age"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentConfigVersion,
		Interval:       time.Second,
		SignalTimeout:  5 * time.Second,
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   10 * time.Second,
		LogFile:        "~/.pgcenter/pgcenter.log",
		ScreenLogDir:   "~/.pgcenter/logs",
		Screens:        []ScreenConfig{},
	}
}
