package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// Validate checks the settings for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("These settings are from the future (version %d, but pgcenter only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade pgcenter or delete ~/.pgcenterrc")
	}

	if cfg.Interval < screen.MinInterval {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Refresh interval %s is too short", cfg.Interval),
			fmt.Sprintf("Use at least %s", screen.MinInterval))
	}

	if err := validatePositive("signal_timeout", cfg.SignalTimeout); err != nil {
		return err
	}
	if err := validatePositive("connect_timeout", cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := validatePositive("query_timeout", cfg.QueryTimeout); err != nil {
		return err
	}

	seen := make(map[int]bool)
	for _, sc := range cfg.Screens {
		if err := validateScreen(sc); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Screen %d has invalid settings", sc.Slot),
				"Check the 'screens' section in ~/.pgcenterrc.")
		}
		if seen[sc.Slot] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Screen %d is listed twice", sc.Slot),
				"Keep one entry per slot in ~/.pgcenterrc.")
		}
		seen[sc.Slot] = true
	}

	return nil
}

func validatePositive(name string, d time.Duration) error {
	if d <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s must be positive, got %s", name, d),
			"Use a duration such as 5s")
	}
	return nil
}

func validateScreen(sc ScreenConfig) error {
	if sc.Slot < 1 || sc.Slot > screen.MaxScreens {
		return fmt.Errorf("slot must be between 1 and %d", screen.MaxScreens)
	}
	if sc.Port < 0 || sc.Port > 65535 {
		return fmt.Errorf("port %d is out of range", sc.Port)
	}
	if sc.Context != "" {
		if _, err := stat.ParseContextID(sc.Context); err != nil {
			return err
		}
	}
	if sc.MinAge != "" {
		if err := stat.ValidateInterval(sc.MinAge); err != nil {
			return fmt.Errorf("min_age %q is not an interval", sc.MinAge)
		}
	}
	return nil
}
