package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
)

// ConfigFileName is the settings file name in the home directory.
const ConfigFileName = ".pgcenterrc"

// DefaultPath returns ~/.pgcenterrc.
func DefaultPath() string {
	return ExpandTilde("~/" + ConfigFileName)
}

// Load reads settings from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// The file has no extension, so viper can't infer the format.
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Settings file not found",
				"pgcenter writes "+path+" on exit; until then built-in defaults are used")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read settings file",
			"Check that "+path+" is valid YAML, or delete it to start over")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid settings format",
			"Check the YAML syntax in "+path)
	}
	return cfg, nil
}

// LoadOrDefault loads settings from path. A missing file silently yields
// defaults; an unreadable or invalid file yields defaults and a warning.
func LoadOrDefault(path string, log logger.Logger) *Config {
	if log == nil {
		log = logger.Noop()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debug("no settings file at %s, using defaults", path)
		return DefaultConfig()
	}

	cfg, err := Load(path)
	if err == nil {
		err = Validate(cfg)
	}
	if err != nil {
		log.Warn("ignoring settings file %s: %s", path, errors.Short(err))
		return DefaultConfig()
	}
	return cfg
}

// setDefaults registers defaults so keys missing from the file keep them.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("interval", def.Interval.String())
	v.SetDefault("signal_timeout", def.SignalTimeout.String())
	v.SetDefault("connect_timeout", def.ConnectTimeout.String())
	v.SetDefault("query_timeout", def.QueryTimeout.String())
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("screen_log_dir", def.ScreenLogDir)
}

// Save writes cfg to path with owner-only permissions, since it names
// servers and users. The file is replaced atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't encode settings", "")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create directory "+dir,
			"Check your permissions for "+dir+".")
	}

	tmp, err := os.CreateTemp(dir, ConfigFileName+".*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write settings file "+path,
			"Check your permissions for "+dir+".")
	}
	defer os.Remove(tmp.Name())

	header := fmt.Sprintf("# pgcenter settings, rewritten on exit (version %d)\n", CurrentConfigVersion)
	_, err = tmp.WriteString(header)
	if err == nil {
		_, err = tmp.Write(data)
	}
	if err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write settings file "+path, "")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't set permissions on "+path, "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write settings file "+path, "")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't replace settings file "+path,
			"Check your permissions for "+dir+".")
	}
	return nil
}
