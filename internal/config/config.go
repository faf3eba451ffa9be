// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Kafka       KafkaConfig
	Pay         PayConfig
	Geocoder    GeocoderConfig
	Registry    RegistryConfig
	Jobs        JobsConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	EmailTopic   string
	BatchTopic   string
	WriteTimeout int
	Source       string
}

type PayConfig struct {
	BaseURL        string
	Timeout        int // in seconds
	HostFee        float64
	PlatformFee    float64
	StrataHotelFee float64
}

type GeocoderConfig struct {
	BaseURL string
	APIKey  string
	Timeout int // in seconds
}

// RegistryConfig holds the STRR policy knobs: review windows, permit term and
// the legislative timezone all date math is anchored to.
type RegistryConfig struct {
	NocWindowDays            int
	RegistrationTermDays     int
	AutoApprovalDelayMinutes int
	NumberMaxAttempts        int
	LegislativeTimezone      string
}

type JobsConfig struct {
	BatchMaxAttempts  int
	BackoffCapSeconds int
	ValidatorWorkers  int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "strr"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ca-central-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "strr-documents"),
		},
		Kafka: KafkaConfig{
			Enabled:      getEnvAsBool("KAFKA_ENABLED", true),
			Brokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			EmailTopic:   getEnv("KAFKA_EMAIL_TOPIC", "strr.email"),
			BatchTopic:   getEnv("KAFKA_BATCH_TOPIC", "strr.batch"),
			WriteTimeout: getEnvAsInt("KAFKA_WRITE_TIMEOUT", 10),
			Source:       getEnv("KAFKA_SOURCE", "strr-backend"),
		},
		Pay: PayConfig{
			BaseURL:        getEnv("PAY_API_URL", "http://localhost:9191/api/v1"),
			Timeout:        getEnvAsInt("PAY_API_TIMEOUT", 30),
			HostFee:        getEnvAsFloat("PAY_HOST_FEE", 100.0),
			PlatformFee:    getEnvAsFloat("PAY_PLATFORM_FEE", 1500.0),
			StrataHotelFee: getEnvAsFloat("PAY_STRATA_HOTEL_FEE", 1500.0),
		},
		Geocoder: GeocoderConfig{
			BaseURL: getEnv("GEOCODER_API_URL", "http://localhost:9292/api/v1"),
			APIKey:  getEnv("GEOCODER_API_KEY", ""),
			Timeout: getEnvAsInt("GEOCODER_API_TIMEOUT", 45),
		},
		Registry: RegistryConfig{
			NocWindowDays:            getEnvAsInt("NOC_WINDOW_DAYS", 8),
			RegistrationTermDays:     getEnvAsInt("REGISTRATION_TERM_DAYS", 365),
			AutoApprovalDelayMinutes: getEnvAsInt("AUTO_APPROVAL_DELAY_MINUTES", 10),
			NumberMaxAttempts:        getEnvAsInt("NUMBER_MAX_ATTEMPTS", 10),
			LegislativeTimezone:      getEnv("LEGISLATIVE_TIMEZONE", "America/Vancouver"),
		},
		Jobs: JobsConfig{
			BatchMaxAttempts:  getEnvAsInt("JOB_BATCH_MAX_ATTEMPTS", 5),
			BackoffCapSeconds: getEnvAsInt("JOB_BACKOFF_CAP_SECONDS", 60),
			ValidatorWorkers:  getEnvAsInt("JOB_VALIDATOR_WORKERS", 4),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if _, err := time.LoadLocation(c.Registry.LegislativeTimezone); err != nil {
		return fmt.Errorf("invalid legislative timezone %q: %w", c.Registry.LegislativeTimezone, err)
	}

	if c.Registry.NocWindowDays < 1 {
		return fmt.Errorf("NOC window must be at least one day")
	}

	return nil
}

// LegislativeLocation resolves the configured legislative timezone. Validate
// has already checked the zone name, so the lookup cannot fail at this point.
func (c *Config) LegislativeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Registry.LegislativeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
