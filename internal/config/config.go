package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	DB        DatabaseConfig
	Upload    UploadConfig
	Map       MapConfig
	RateLimit RateLimitConfig
	Import    ImportConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host          string
	Port          int
	PublicBaseURL string
}

// GRPCConfig controls the health endpoint. Port 0 disables it.
type GRPCConfig struct {
	Port           int
	HealthInterval time.Duration
}

type DatabaseConfig struct {
	Driver string // "sqlite" or "pgx"
	Path   string
	DSN    string
}

type UploadConfig struct {
	MaxBytes int64
}

type MapConfig struct {
	DefaultLatitude  float64
	DefaultLongitude float64
}

type RateLimitConfig struct {
	RPS int
}

type ImportConfig struct {
	Workers    int
	BufferSize int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "localhost"),
			Port:          getEnvInt("SERVER_PORT", 8080),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		GRPC: GRPCConfig{
			Port:           getEnvInt("GRPC_PORT", 50051),
			HealthInterval: getEnvDuration("GRPC_HEALTH_INTERVAL", 15*time.Second),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "./data/cityreport.db"),
			DSN:    getEnv("DB_DSN", ""),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 50<<20)),
		},
		Map: MapConfig{
			// Gothenburg city centre
			DefaultLatitude:  getEnvFloat("MAP_DEFAULT_LAT", 57.7089),
			DefaultLongitude: getEnvFloat("MAP_DEFAULT_LNG", 11.9746),
		},
		RateLimit: RateLimitConfig{
			RPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Import: ImportConfig{
			Workers:    getEnvInt("IMPORT_WORKERS", 2),
			BufferSize: getEnvInt("IMPORT_BUFFER_SIZE", 20),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DataSource returns the DSN handed to the selected SQL driver.
func (c *Config) DataSource() string {
	if c.DB.Driver == "pgx" {
		return c.DB.DSN
	}
	return c.DB.Path
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.GRPC.Port != 0 && c.GRPC.HealthInterval < time.Second {
		return fmt.Errorf("gRPC health interval must be at least 1 second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "pgx":
		if c.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the pgx driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.DB.Driver)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload limit must be positive")
	}
	// zero disables rate limiting
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import worker count must be at least 1")
	}
	if c.Import.BufferSize < 0 {
		return fmt.Errorf("import buffer size must not be negative")
	}

	if math.IsNaN(c.Map.DefaultLatitude) || c.Map.DefaultLatitude < -90 || c.Map.DefaultLatitude > 90 {
		return fmt.Errorf("invalid default map latitude: %f", c.Map.DefaultLatitude)
	}
	if math.IsNaN(c.Map.DefaultLongitude) || c.Map.DefaultLongitude < -180 || c.Map.DefaultLongitude > 180 {
		return fmt.Errorf("invalid default map longitude: %f", c.Map.DefaultLongitude)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
