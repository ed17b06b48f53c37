package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rileyhilliard/pgcenter/internal/postgres"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	// Handle ~/path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unchanged if we can't get home
		}
		return filepath.Join(home, path[2:])
	}

	// Handle standalone ~
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// EnvParams reads the libpq environment: PGHOST, PGPORT, PGUSER,
// PGDATABASE and PGPASSWORD. Unset variables leave fields empty.
func EnvParams() postgres.Params {
	p := postgres.Params{
		Host:     os.Getenv("PGHOST"),
		User:     os.Getenv("PGUSER"),
		DBName:   os.Getenv("PGDATABASE"),
		Password: os.Getenv("PGPASSWORD"),
	}
	if port, err := strconv.Atoi(os.Getenv("PGPORT")); err == nil {
		p.Port = port
	}
	return p
}

// Merge fills empty fields of p from fallback.
func Merge(p, fallback postgres.Params) postgres.Params {
	if p.Host == "" {
		p.Host = fallback.Host
	}
	if p.Port == 0 {
		p.Port = fallback.Port
	}
	if p.User == "" {
		p.User = fallback.User
	}
	if p.DBName == "" {
		p.DBName = fallback.DBName
	}
	if p.Password == "" {
		p.Password = fallback.Password
	}
	return p
}
