package config

import (
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// Params returns the saved connection, with empty fields taken from fallback.
func (sc ScreenConfig) Params(fallback postgres.Params) postgres.Params {
	return Merge(postgres.Params{
		Host:   sc.Host,
		Port:   sc.Port,
		User:   sc.User,
		DBName: sc.DBName,
	}, fallback)
}

// Options converts a saved slot into screen options. An unknown context name
// falls back to the default context.
func (sc ScreenConfig) Options(fallback postgres.Params) screen.Options {
	id := stat.DefaultContext
	if sc.Context != "" {
		if parsed, err := stat.ParseContextID(sc.Context); err == nil {
			id = parsed
		}
	}
	return screen.Options{
		Params:  sc.Params(fallback),
		Context: id,
		MinAge:  sc.MinAge,
	}
}

// FromScreens records the open screens. Passwords are left out.
func FromScreens(screens []*screen.Screen) []ScreenConfig {
	out := make([]ScreenConfig, 0, len(screens))
	for _, s := range screens {
		p := s.Params()
		out = append(out, ScreenConfig{
			Slot:    s.Slot(),
			Host:    p.Host,
			Port:    p.Port,
			User:    p.User,
			DBName:  p.DBName,
			Context: s.Context().ID.String(),
			MinAge:  s.MinAge(),
		})
	}
	return out
}
