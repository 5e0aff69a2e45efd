// Package config provides environment lookup helpers for vzen commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Env var names understood across vzen commands.
const (
	EnvSource     = "VZEN_SOURCE"
	EnvBackend    = "VZEN_BACKEND"
	EnvModelDir   = "VZEN_MODEL_DIR"
	EnvConfidence = "VZEN_CONFIDENCE"
	EnvLogLevel   = "VZEN_LOG_LEVEL"
	EnvListenAddr = "VZEN_LISTEN_ADDR"
	EnvNotifyURL  = "VZEN_NOTIFY_URL"
)

// Str returns the value of the named env var, or def when unset or empty.
func Str(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Int returns the named env var parsed as an int, or def when unset
// or unparseable.
func Int(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns the named env var parsed as a float64, or def when unset
// or unparseable.
func Float(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the named env var parsed as a bool ("1", "true", "yes" are
// true), or def when unset.
func Bool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES":
		return true
	case "0", "false", "FALSE", "False", "no", "NO":
		return false
	}
	return def
}

// Duration returns the named env var parsed with time.ParseDuration, or def
// when unset or unparseable.
func Duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
