package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the env var value for key, or fallback when unset or blank.
func String(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Int returns the env var parsed as an int, or fallback when unset or invalid.
func Int(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Bool reports whether the env var is set to a truthy value
// (1, true, yes, on; case-insensitive).
func Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Duration returns the env var parsed as a [time.Duration]. A bare integer is
// read as seconds. Unset, invalid or non-positive values yield fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return fallback
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
