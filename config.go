package ygggo_mysqlpool

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultPoolSize       = 5
	DefaultMaxIdle        = 5
	DefaultConnectTimeout = 10 * time.Second
	defaultDriver         = "mysql"
)

// Secret is a string that never prints its value.
type Secret string

func (s Secret) String() string {
	if s == "" { return "" }
	return "******"
}

// LogValue keeps secrets out of structured logs.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// Config holds the pool manager configuration. It is captured by New and never
// mutated afterwards; zero values mean "use the default".
type Config struct {
	// Driver allows overriding the sql driver (e.g., "mysql" in prod, "sqlmock" in tests).
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Field-based DSN building (used when DSN is empty)
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password Secret            `yaml:"password"`
	Database string            `yaml:"database"`
	Params   map[string]string `yaml:"params"`

	PoolSize        int           `yaml:"pool_size"`
	MaxIdle         int           `yaml:"max_idle"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// withDefaults fills unset fields. Negative values are left for Validate to reject.
func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Driver) == "" { c.Driver = defaultDriver }
	if c.PoolSize == 0 { c.PoolSize = DefaultPoolSize }
	if c.MaxIdle == 0 { c.MaxIdle = DefaultMaxIdle }
	if c.ConnectTimeout == 0 { c.ConnectTimeout = DefaultConnectTimeout }
	return c
}

// Validate reports every problem with an already defaulted config.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.PoolSize < 1 {
		result = multierror.Append(result, fmt.Errorf("pool size must be at least 1, got %d", c.PoolSize))
	}
	if c.MaxIdle < 0 {
		result = multierror.Append(result, fmt.Errorf("max idle must be non-negative, got %d", c.MaxIdle))
	}
	if c.ConnectTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("connect timeout must be non-negative, got %v", c.ConnectTimeout))
	}
	if c.ConnMaxLifetime < 0 {
		result = multierror.Append(result, fmt.Errorf("conn max lifetime must be non-negative, got %v", c.ConnMaxLifetime))
	}
	if c.ConnMaxIdleTime < 0 {
		result = multierror.Append(result, fmt.Errorf("conn max idle time must be non-negative, got %v", c.ConnMaxIdleTime))
	}
	if c.Port < 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port out of range: %d", c.Port))
	}
	return result.ErrorOrNil()
}

func (c Config) usesMySQLDriver() bool { return c.Driver == defaultDriver }

// mysqlConfig returns the driver configuration.
// Priority: if Config.DSN is non-empty it is parsed as is,
// otherwise it is built from host/port/username/password/database/params.
func (c Config) mysqlConfig() (*mysql.Config, error) {
	if strings.TrimSpace(c.DSN) != "" {
		mc, err := mysql.ParseDSN(c.DSN)
		if err != nil { return nil, fmt.Errorf("parse dsn: %w", err) }
		if mc.Timeout == 0 { mc.Timeout = c.ConnectTimeout }
		return mc, nil
	}
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = string(c.Password)
	mc.DBName = c.Database
	if c.Host != "" || c.Port > 0 {
		host := c.Host
		if host == "" { host = "127.0.0.1" }
		port := c.Port
		if port == 0 { port = 3306 }
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	mc.Timeout = c.ConnectTimeout
	// Round-trip params through the DSN parser so driver options such as
	// parseTime are honored instead of being sent as session variables.
	if len(c.Params) > 0 {
		mc.Params = c.Params
		parsed, err := mysql.ParseDSN(mc.FormatDSN())
		if err != nil { return nil, fmt.Errorf("parse params: %w", err) }
		return parsed, nil
	}
	return mc, nil
}

// dsnFromConfig returns a DSN string usable with sql.Open.
func dsnFromConfig(c Config) (string, error) {
	if strings.TrimSpace(c.DSN) != "" { return c.DSN, nil }
	mc, err := c.mysqlConfig()
	if err != nil { return "", err }
	return mc.FormatDSN(), nil
}

// redactedDSN is safe to log.
func redactedDSN(c Config) string {
	mc, err := c.mysqlConfig()
	if err != nil {
		if c.DSN != "" { return "<unparseable dsn>" }
		return ""
	}
	if mc.Passwd != "" { mc.Passwd = Secret(mc.Passwd).String() }
	return mc.FormatDSN()
}
