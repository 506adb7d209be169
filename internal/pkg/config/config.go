package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host           string
	Port           string
	DB             string
	Username       string
	Password       string
	SSLMode        string
	MaxConns       int32
	MinConns       int32
	AcquireTimeout time.Duration
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL time.Duration
	Issuer         string
}

// NearbyConfig holds the search radii and the page size ceiling used by the
// nearby endpoints. Radii are in metres.
type NearbyConfig struct {
	MaxPageSize     int
	LocationRadius  float64
	PlayingRadius   float64
	DuplicateRadius float64
}

type Config struct {
	Repositories RepositoriesConfig
	JWT          JWTConfig
	Nearby       NearbyConfig
	ServerPort   string
	MetricsAddr  string
	PprofAddr    string
	UploadDir    string
	ServiceName  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:           getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:           getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:             getEnvOrDefault("POSTGRES_DB", "withbaby"),
				Username:       getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password:       getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns:       int32(getIntOrDefault("POSTGRES_MAX_CONNS", 30)),
				MinConns:       int32(getIntOrDefault("POSTGRES_MIN_CONNS", 5)),
				AcquireTimeout: getDurationOrDefault("POSTGRES_ACQUIRE_TIMEOUT", 5*time.Second),
			},
		},
		JWT: JWTConfig{
			SecretKey:      getEnvOrDefault("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TTL", 7*24*time.Hour),
			Issuer:         getEnvOrDefault("JWT_ISSUER", "withbaby"),
		},
		Nearby: NearbyConfig{
			MaxPageSize:     getIntOrDefault("NEARBY_MAX_PAGE_SIZE", 40),
			LocationRadius:  getFloatOrDefault("NEARBY_LOCATION_RADIUS", 100000),
			PlayingRadius:   getFloatOrDefault("NEARBY_PLAYING_RADIUS", 30000),
			DuplicateRadius: getFloatOrDefault("NEARBY_DUPLICATE_RADIUS", 500),
		},
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8000"),
		MetricsAddr: getEnvOrDefault("METRICS_ADDR", ":9092"),
		PprofAddr:   getEnvOrDefault("PPROF_ADDR", ":6060"),
		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		ServiceName: getEnvOrDefault("SERVICE_NAME", "withbaby"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}
	if cfg.Nearby.MaxPageSize <= 0 {
		return nil, fmt.Errorf("NEARBY_MAX_PAGE_SIZE must be positive, got %d", cfg.Nearby.MaxPageSize)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
