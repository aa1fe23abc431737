package ygggo_mysqlpool

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by applyEnv. Set values override the config.
const (
	EnvDriver             = "YGGGO_MYSQLPOOL_DRIVER"
	EnvDSN                = "YGGGO_MYSQLPOOL_DSN"
	EnvHost               = "YGGGO_MYSQLPOOL_HOST"
	EnvPort               = "YGGGO_MYSQLPOOL_PORT"
	EnvUsername           = "YGGGO_MYSQLPOOL_USERNAME"
	EnvPassword           = "YGGGO_MYSQLPOOL_PASSWORD"
	EnvDatabase           = "YGGGO_MYSQLPOOL_DATABASE"
	EnvParams             = "YGGGO_MYSQLPOOL_PARAMS"
	EnvPoolSize           = "YGGGO_MYSQLPOOL_POOL_SIZE"
	EnvMaxIdle            = "YGGGO_MYSQLPOOL_MAX_IDLE"
	EnvConnectTimeout     = "YGGGO_MYSQLPOOL_CONNECT_TIMEOUT"
	EnvConnMaxLifetime    = "YGGGO_MYSQLPOOL_CONN_MAX_LIFETIME"
	EnvConnMaxIdleTime    = "YGGGO_MYSQLPOOL_CONN_MAX_IDLE_TIME"
	EnvSlowQueryThreshold = "YGGGO_MYSQLPOOL_SLOW_QUERY_THRESHOLD"
)

// LoadConfig reads a YAML config file and applies environment overrides on top.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil { return cfg, fmt.Errorf("read config: %w", err) }
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil { return cfg, err }
	return cfg, nil
}

// NewFromEnv builds a Manager purely from YGGGO_MYSQLPOOL_* variables.
func NewFromEnv() (*Manager, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil { return nil, err }
	return New(cfg)
}

// applyEnv overrides cfg fields with any YGGGO_MYSQLPOOL_* variable that is set.
func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvDriver); ok { cfg.Driver = v }
	if v, ok := os.LookupEnv(EnvDSN); ok { cfg.DSN = v }
	if v, ok := os.LookupEnv(EnvHost); ok { cfg.Host = v }
	if v, ok := os.LookupEnv(EnvUsername); ok { cfg.Username = v }
	if v, ok := os.LookupEnv(EnvPassword); ok { cfg.Password = Secret(v) }
	if v, ok := os.LookupEnv(EnvDatabase); ok { cfg.Database = v }
	if v, ok := os.LookupEnv(EnvParams); ok {
		params, err := parseParams(v)
		if err != nil { return fmt.Errorf("%s: %w", EnvParams, err) }
		cfg.Params = params
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvPort, &cfg.Port},
		{EnvPoolSize, &cfg.PoolSize},
		{EnvMaxIdle, &cfg.MaxIdle},
	}
	for _, it := range ints {
		v, ok := os.LookupEnv(it.key)
		if !ok || strings.TrimSpace(v) == "" { continue }
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil { return fmt.Errorf("%s: %w", it.key, err) }
		*it.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvConnectTimeout, &cfg.ConnectTimeout},
		{EnvConnMaxLifetime, &cfg.ConnMaxLifetime},
		{EnvConnMaxIdleTime, &cfg.ConnMaxIdleTime},
		{EnvSlowQueryThreshold, &cfg.SlowQueryThreshold},
	}
	for _, it := range durations {
		v, ok := os.LookupEnv(it.key)
		if !ok || strings.TrimSpace(v) == "" { continue }
		d, err := parseDurationMillis(v)
		if err != nil { return fmt.Errorf("%s: %w", it.key, err) }
		*it.dst = d
	}
	return nil
}

// parseDurationMillis accepts Go durations ("10s") or a bare integer of milliseconds.
func parseDurationMillis(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// parseParams parses "k1=v1&k2=v2".
func parseParams(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(v, "&") {
		part = strings.TrimSpace(part)
		if part == "" { continue }
		k, val, ok := strings.Cut(part, "=")
		if !ok || k == "" { return nil, fmt.Errorf("malformed param %q", part) }
		out[k] = val
	}
	return out, nil
}
