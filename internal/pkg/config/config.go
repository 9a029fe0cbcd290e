package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	// Environment
	Environment string `mapstructure:"ENV"`

	// Server Configuration
	ServerHost string `mapstructure:"SERVER_HOST"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	Session  SessionConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Database DatabaseConfig
	Cleaning CleaningConfig

	// File Processing
	MaxFileSize int64  `mapstructure:"MAX_FILE_SIZE_MB"`
	TempDir     string `mapstructure:"TEMP_DIR"`
}

// SessionConfig controls session lifecycle and locking
type SessionConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
	LockWait      time.Duration
}

// CacheConfig holds the Redis connection used by the redis session backend
type CacheConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  int
	ReadTimeout  int
	WriteTimeout int
	PoolSize     int
	MinIdleConns int
}

// QueueConfig holds asynq settings for session expiry tasks
type QueueConfig struct {
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DialTimeout    int
	ReadTimeout    int
	WriteTimeout   int
	Concurrency    int
	StrictPriority bool
}

// DatabaseConfig holds Postgres settings for the cleaning run history
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int
	MaxConnIdleTime int
}

// CleaningConfig tunes ingestion, detection and the cleaning engine
type CleaningConfig struct {
	PreviewRows         int
	DetectionSampleSize int
	DetectionThreshold  float64
	LengthPolicy        string
	CountryCodePolicy   string
	Workers             int
	Timeout             time.Duration
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	setDefaults()

	// Bind environment variables
	viper.AutomaticEnv()

	config := &Config{}

	config.Environment = viper.GetString("ENV")
	config.ServerHost = viper.GetString("SERVER_HOST")
	config.ServerPort = viper.GetString("SERVER_PORT")

	// Session
	config.Session = SessionConfig{
		Backend:       strings.ToLower(viper.GetString("SESSION_BACKEND")),
		TTL:           time.Duration(viper.GetInt("SESSION_TTL_MINUTES")) * time.Minute,
		SweepInterval: time.Duration(viper.GetInt("SESSION_SWEEP_INTERVAL_SECONDS")) * time.Second,
		LockWait:      time.Duration(viper.GetInt("SESSION_LOCK_WAIT_SECONDS")) * time.Second,
	}

	// Redis
	config.Cache = CacheConfig{
		Host:         viper.GetString("REDIS_HOST"),
		Port:         viper.GetInt("REDIS_PORT"),
		Password:     viper.GetString("REDIS_PASSWORD"),
		DB:           viper.GetInt("REDIS_DB"),
		DialTimeout:  viper.GetInt("REDIS_DIAL_TIMEOUT"),
		ReadTimeout:  viper.GetInt("REDIS_READ_TIMEOUT"),
		WriteTimeout: viper.GetInt("REDIS_WRITE_TIMEOUT"),
		PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
		MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
	}

	// Queue shares the Redis instance
	config.Queue = QueueConfig{
		RedisHost:      config.Cache.Host,
		RedisPort:      config.Cache.Port,
		RedisPassword:  config.Cache.Password,
		RedisDB:        config.Cache.DB,
		DialTimeout:    config.Cache.DialTimeout,
		ReadTimeout:    config.Cache.ReadTimeout,
		WriteTimeout:   config.Cache.WriteTimeout,
		Concurrency:    viper.GetInt("WORKER_CONCURRENCY"),
		StrictPriority: viper.GetBool("WORKER_STRICT_PRIORITY"),
	}

	// Database
	config.Database = DatabaseConfig{
		Enabled:         viper.GetBool("DB_ENABLED"),
		Host:            viper.GetString("DB_HOST"),
		Port:            viper.GetInt("DB_PORT"),
		User:            viper.GetString("DB_USER"),
		Password:        viper.GetString("DB_PASSWORD"),
		Database:        viper.GetString("DB_NAME"),
		SSLMode:         viper.GetString("DB_SSLMODE"),
		LogLevel:        viper.GetString("DB_LOG_LEVEL"),
		MaxConnections:  viper.GetInt("DB_MAX_CONNECTIONS"),
		MinConnections:  viper.GetInt("DB_MIN_CONNECTIONS"),
		MaxConnLifetime: viper.GetInt("DB_MAX_CONN_LIFETIME_MINUTES"),
		MaxConnIdleTime: viper.GetInt("DB_MAX_CONN_IDLE_MINUTES"),
	}

	// Cleaning
	config.Cleaning = CleaningConfig{
		PreviewRows:         viper.GetInt("PREVIEW_ROWS"),
		DetectionSampleSize: viper.GetInt("DETECTION_SAMPLE_SIZE"),
		DetectionThreshold:  viper.GetFloat64("DETECTION_THRESHOLD"),
		LengthPolicy:        strings.ToLower(viper.GetString("PHONE_LENGTH_POLICY")),
		CountryCodePolicy:   strings.ToLower(viper.GetString("PHONE_COUNTRY_CODE_POLICY")),
		Workers:             viper.GetInt("CLEAN_WORKERS"),
		Timeout:             time.Duration(viper.GetInt("CLEAN_TIMEOUT_SECONDS")) * time.Second,
	}

	// File processing
	config.MaxFileSize = viper.GetInt64("MAX_FILE_SIZE_MB")
	config.TempDir = viper.GetString("TEMP_DIR")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8000")

	// Session defaults
	viper.SetDefault("SESSION_BACKEND", BackendMemory)
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("SESSION_SWEEP_INTERVAL_SECONDS", 60)
	viper.SetDefault("SESSION_LOCK_WAIT_SECONDS", 10)

	// Redis defaults
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	viper.SetDefault("REDIS_READ_TIMEOUT", 3)
	viper.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	viper.SetDefault("REDIS_POOL_SIZE", 10)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	// Worker defaults
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("WORKER_STRICT_PRIORITY", false)

	// Database defaults
	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_NAME", "phoneclean")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_LOG_LEVEL", "silent")
	viper.SetDefault("DB_MAX_CONNECTIONS", 10)
	viper.SetDefault("DB_MIN_CONNECTIONS", 2)
	viper.SetDefault("DB_MAX_CONN_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_MAX_CONN_IDLE_MINUTES", 5)

	// Cleaning defaults
	viper.SetDefault("PREVIEW_ROWS", 20)
	viper.SetDefault("DETECTION_SAMPLE_SIZE", 50)
	viper.SetDefault("DETECTION_THRESHOLD", 0.5)
	viper.SetDefault("PHONE_LENGTH_POLICY", "exact10")
	viper.SetDefault("PHONE_COUNTRY_CODE_POLICY", "detected")
	viper.SetDefault("CLEAN_WORKERS", 4)
	viper.SetDefault("CLEAN_TIMEOUT_SECONDS", 60)

	// File processing defaults
	viper.SetDefault("MAX_FILE_SIZE_MB", 50)
	viper.SetDefault("TEMP_DIR", "/tmp/phoneclean_sessions")
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive")
	}
	switch c.Cleaning.LengthPolicy {
	case "exact10", "lenient":
	default:
		return fmt.Errorf("PHONE_LENGTH_POLICY must be exact10 or lenient, got %q", c.Cleaning.LengthPolicy)
	}
	switch c.Cleaning.CountryCodePolicy {
	case "detected", "always":
	default:
		return fmt.Errorf("PHONE_COUNTRY_CODE_POLICY must be detected or always, got %q", c.Cleaning.CountryCodePolicy)
	}
	if c.Cleaning.DetectionThreshold <= 0 || c.Cleaning.DetectionThreshold > 1 {
		return fmt.Errorf("DETECTION_THRESHOLD must be in (0, 1]")
	}
	if c.Database.Enabled {
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required when DB_ENABLED is set")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when DB_ENABLED is set")
		}
	}
	return nil
}

// MaxFileSizeBytes returns the upload ceiling in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSize * 1024 * 1024
}

// GetDatabaseURL constructs the PostgreSQL connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// GetRedisURL constructs the Redis address
func (c *CacheConfig) GetRedisURL() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig() {
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", c.Environment)
	log.Printf("  Server: %s:%s", c.ServerHost, c.ServerPort)
	log.Printf("  Session backend: %s (TTL: %s)", c.Session.Backend, c.Session.TTL)
	if c.Session.Backend == BackendRedis {
		log.Printf("  Redis: %s (DB: %d)", c.Cache.GetRedisURL(), c.Cache.DB)
	}
	if c.Database.Enabled {
		log.Printf("  Database: %s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)
	} else {
		log.Printf("  Database: [DISABLED]")
	}
	log.Printf("  Max upload: %d MB", c.MaxFileSize)
	log.Printf("  Phone length policy: %s", c.Cleaning.LengthPolicy)
	log.Printf("  Country code policy: %s", c.Cleaning.CountryCodePolicy)
	log.Printf("  Clean workers: %d", c.Cleaning.Workers)

	if c.Cache.Password != "" {
		log.Printf("  Redis Password: [CONFIGURED]")
	}
}
