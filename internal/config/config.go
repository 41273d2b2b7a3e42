package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is used when GRIMOIRE_CONFIG is unset.
	DefaultPath = "config/spellserver.yaml"
	// PathEnv names the variable holding the config file path.
	PathEnv = "GRIMOIRE_CONFIG"
	// EnvPrefix prefixes every override variable.
	EnvPrefix = "GRIMOIRE_"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SpellServer holds all configuration for the spell server.
type SpellServer struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	GMLink    GMLinkConfig    `yaml:"gmlink" envPrefix:"GMLINK_"`
	Scene     SceneConfig     `yaml:"scene" envPrefix:"SCENE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
}

// StorageConfig selects where actors and effects live.
type StorageConfig struct {
	Driver     string         `yaml:"driver" env:"DRIVER"`
	Database   DatabaseConfig `yaml:"database" envPrefix:"DB_"`
	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// GMLinkConfig configures the privileged executor endpoint.
type GMLinkConfig struct {
	BindAddress string `yaml:"bind_address" env:"BIND_ADDRESS"`
	Port        int    `yaml:"port" env:"PORT"`

	// TokenHash is the bcrypt hash of the shared peer token.
	TokenHash string `yaml:"token_hash" env:"TOKEN_HASH"`

	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"` // per-frame write deadline
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`   // idle peer disconnect
	SendQueueSize int           `yaml:"send_queue_size" env:"SEND_QUEUE_SIZE"`
}

// Addr returns host:port for net.Listen.
func (g GMLinkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.BindAddress, g.Port)
}

// SceneConfig supplies defaults for scenes that do not carry their own grid size.
type SceneConfig struct {
	CellSize float64 `yaml:"cell_size" env:"CELL_SIZE"`
	Gridless bool    `yaml:"gridless" env:"GRIDLESS"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Enabled reports whether traces are exported.
func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

// DefaultSpellServer returns SpellServer config with sensible defaults.
func DefaultSpellServer() SpellServer {
	return SpellServer{
		LogLevel: "info",
		Storage: StorageConfig{
			Driver: DriverPostgres,
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "grimoire",
				Password: "grimoire",
				DBName:   "grimoire",
				SSLMode:  "disable",
			},
			SQLitePath: "grimoire.db",
		},
		GMLink: GMLinkConfig{
			BindAddress:   "0.0.0.0",
			Port:          7780,
			WriteTimeout:  5 * time.Second,
			ReadTimeout:   120 * time.Second,
			SendQueueSize: 64,
		},
		Scene: SceneConfig{
			CellSize: 100,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "grimoire-spellserver",
		},
	}
}

// Path returns the config file path, honoring GRIMOIRE_CONFIG.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// LoadSpellServer loads config from a YAML file, then applies GRIMOIRE_*
// environment overrides. If the file doesn't exist, defaults are used.
func LoadSpellServer(path string) (SpellServer, error) {
	cfg := DefaultSpellServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// ParseEnv overrides target fields from GRIMOIRE_* environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c SpellServer) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.Storage.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite driver needs sqlite_path")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.GMLink.Port < 0 || c.GMLink.Port > 65535 {
		return fmt.Errorf("gmlink port %d out of range", c.GMLink.Port)
	}
	if c.Scene.CellSize <= 0 {
		return fmt.Errorf("scene cell_size must be positive, got %v", c.Scene.CellSize)
	}

	return nil
}
