package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Gate     GateConfig
	Log      LogConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for the ops HTTP server (/metrics, /healthz, /readyz)
}

// StorageConfig selects the permission registry implementation
type StorageConfig struct {
	Driver      string // postgres or memory
	AutoMigrate bool   // Apply pending migrations at startup (postgres only)
}

// CacheConfig represents permission cache configuration
type CacheConfig struct {
	Enabled    bool
	Backend    string // memory or redis
	MaxEntries int
	TTLSeconds int
}

// TTL returns the cache entry lifetime
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig represents Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GateConfig names the special authorities
type GateConfig struct {
	AnonymousAuthority string // Wildcard satisfied by every caller
	AdminAuthority     string // Required by administrative RPCs
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string // logrus level name
	Format string // json or text
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// FindProjectRoot finds the project root directory by looking for go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root directory
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	// Outside a source checkout (e.g. a container) only env vars and defaults apply
	if projectRoot, err := FindProjectRoot(); err == nil {
		viper.SetConfigName(fmt.Sprintf(".env.%s", env))
		viper.SetConfigType("env")
		viper.AddConfigPath(projectRoot)

		// Read config file (optional, ignore error if not found)
		_ = viper.ReadInConfig()
	}

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	setDefaults()
	return nil
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "kanmon")
	viper.SetDefault("DB_NAME", "kanmon_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("STORAGE_AUTO_MIGRATE", false)

	// Cache defaults
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	viper.SetDefault("CACHE_MAX_ENTRIES", 10000)
	viper.SetDefault("CACHE_TTL_SECONDS", 30)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("GATE_ANONYMOUS_AUTHORITY", "ROLE_ANONYMOUS")
	viper.SetDefault("GATE_ADMIN_AUTHORITY", "ROLE_ADMIN")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
}

// Load loads configuration from viper
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Storage: StorageConfig{
			Driver:      viper.GetString("STORAGE_DRIVER"),
			AutoMigrate: viper.GetBool("STORAGE_AUTO_MIGRATE"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			Backend:    viper.GetString("CACHE_BACKEND"),
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
			TTLSeconds: viper.GetInt("CACHE_TTL_SECONDS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Gate: GateConfig{
			AnonymousAuthority: viper.GetString("GATE_ANONYMOUS_AUTHORITY"),
			AdminAuthority:     viper.GetString("GATE_ADMIN_AUTHORITY"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks option combinations that cannot work
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		// DB_PASSWORD is required for security
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want %s or %s)", c.Storage.Driver, StorageDriverPostgres, StorageDriverMemory)
	}

	if c.Cache.Enabled {
		if c.Cache.Backend != CacheBackendMemory && c.Cache.Backend != CacheBackendRedis {
			return fmt.Errorf("unknown CACHE_BACKEND %q (want %s or %s)", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
		}
		if c.Cache.TTLSeconds <= 0 {
			return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
		}
		// Memory registries are per process; a shared cache would leak
		// entries between them
		if c.Cache.Backend == CacheBackendRedis && c.Storage.Driver == StorageDriverMemory {
			return fmt.Errorf("CACHE_BACKEND %s requires STORAGE_DRIVER %s", CacheBackendRedis, StorageDriverPostgres)
		}
	}

	if c.Gate.AnonymousAuthority == "" || c.Gate.AdminAuthority == "" {
		return fmt.Errorf("GATE_ANONYMOUS_AUTHORITY and GATE_ADMIN_AUTHORITY must not be empty")
	}

	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
