package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	TxMaxAttempts int

	// JWT
	JWTSecret               string
	JWTExpirationDur        time.Duration
	JWTRefreshExpirationDur time.Duration

	// Uploads
	UploadDir string

	// Password reset notifications
	AMQPURL        string
	AMQPExchange   string
	AMQPResetQueue string
	ResetTokenTTL  time.Duration
	ResetURLBase   string

	// Maintenance endpoints
	ServiceAPIKey string
}

var (
	appConfig *Config
	mu        sync.Mutex
)

var defaults = map[string]any{
	"ENV":                    "development",
	"PORT":                   "8080",
	"SHUTDOWN_TIMEOUT":       "10s",
	"DB_HOST":                "localhost",
	"DB_PORT":                "5432",
	"DB_USER":                "pocketbook",
	"DB_PASSWORD":            "pocketbook",
	"DB_NAME":                "pocketbook",
	"DB_SSLMODE":             "disable",
	"TX_MAX_ATTEMPTS":        3,
	"JWT_SECRET":             "fallback-secret-key-for-dev-only",
	"JWT_EXPIRES_IN":         "15m",
	"JWT_REFRESH_EXPIRES_IN": "168h",
	"UPLOAD_DIR":             "uploads/images",
	"AMQP_URL":               "",
	"AMQP_EXCHANGE":          "pocketbook",
	"AMQP_RESET_QUEUE":       "password_reset",
	"RESET_TOKEN_TTL":        "1h",
	"RESET_URL_BASE":         "http://localhost:3000/reset",
	"SERVICE_API_KEY":        "",
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	appConfig = cfg
	mu.Unlock()
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:  v.GetString("ENV"),
		Port: v.GetString("PORT"),

		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBName:        v.GetString("DB_NAME"),
		DBSSLMode:     v.GetString("DB_SSLMODE"),
		TxMaxAttempts: v.GetInt("TX_MAX_ATTEMPTS"),

		JWTSecret: v.GetString("JWT_SECRET"),

		UploadDir: v.GetString("UPLOAD_DIR"),

		AMQPURL:        v.GetString("AMQP_URL"),
		AMQPExchange:   v.GetString("AMQP_EXCHANGE"),
		AMQPResetQueue: v.GetString("AMQP_RESET_QUEUE"),
		ResetURLBase:   v.GetString("RESET_URL_BASE"),

		ServiceAPIKey: v.GetString("SERVICE_API_KEY"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"JWT_EXPIRES_IN", &cfg.JWTExpirationDur},
		{"JWT_REFRESH_EXPIRES_IN", &cfg.JWTRefreshExpirationDur},
		{"RESET_TOKEN_TTL", &cfg.ResetTokenTTL},
	}
	for _, d := range durations {
		raw := v.GetString(d.key)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", d.key, raw, err)
		}
		*d.dst = parsed
	}

	if cfg.TxMaxAttempts < 1 {
		cfg.TxMaxAttempts = 1
	}

	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// DatabaseURL returns the postgres:// URL used by the migration tooling.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// DSN returns the key/value connection string used by the GORM postgres driver.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
