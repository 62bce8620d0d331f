package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/username/tradelink/src/processors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidThreshold is returned when the configured auto match threshold is out of range.
var ErrInvalidThreshold = processors.ErrInvalidThreshold

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64
	ReportCacheTTL     time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int

	AutoMatchThreshold float64
	KnownCoinsPath     string
	KnownCoins         []string // extra symbols from the match config file
	MatchConfigPath    string

	APIJWTSecret   string
	APITokenExpiry time.Duration

	NotifyProvider  string
	NotifyRecipient string

	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain        string
	MailgunPrivateAPIKey string

	SenderEmail string
	SenderName  string
}

// MatchFile is the optional YAML file named by MATCH_CONFIG_PATH.
type MatchFile struct {
	AutoMatchThreshold *float64 `yaml:"auto_match_threshold"`
	KnownCoins         []string `yaml:"known_coins"`
	KnownCoinsPath     string   `yaml:"known_coins_path"`
}

var Cfg *AppConfig

// LoadConfig reads .env (if present) and the environment into Cfg.
func LoadConfig() error {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	cfg := &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./tradelink.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		ReportCacheTTL:     getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),

		AutoMatchThreshold: getEnvAsFloat("AUTO_MATCH_THRESHOLD", processors.DefaultAutoMatchThreshold),
		KnownCoinsPath:     getEnv("KNOWN_COINS_PATH", ""),
		MatchConfigPath:    getEnv("MATCH_CONFIG_PATH", ""),

		APIJWTSecret:   getEnv("API_JWT_SECRET", ""),
		APITokenExpiry: getEnvAsDuration("API_TOKEN_EXPIRY", 24*time.Hour),

		NotifyProvider:  getEnv("NOTIFY_PROVIDER", "none"),
		NotifyRecipient: getEnv("NOTIFY_RECIPIENT", ""),

		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),

		SenderEmail: getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:  getEnv("SENDER_NAME", "Tradelink"),
	}

	if cfg.MatchConfigPath != "" {
		if err := cfg.applyMatchFile(cfg.MatchConfigPath); err != nil {
			return err
		}
	}

	if err := cfg.MatchConfig().Validate(); err != nil {
		return err
	}

	if cfg.APIJWTSecret != "" && len(cfg.APIJWTSecret) < 32 {
		return errors.New("API_JWT_SECRET must be at least 32 bytes long")
	}

	Cfg = cfg
	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Threshold=%.2f, NotifyProvider=%s",
		cfg.Port, cfg.LogLevel, cfg.DatabasePath, cfg.AutoMatchThreshold, cfg.NotifyProvider)
	return nil
}

// MatchConfig returns the explicit matcher configuration.
func (c *AppConfig) MatchConfig() processors.MatchConfig {
	return processors.MatchConfig{AutoMatchThreshold: c.AutoMatchThreshold}
}

func (c *AppConfig) applyMatchFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read match config '%s': %w", path, err)
	}
	var mf MatchFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("failed to parse match config '%s': %w", path, err)
	}
	if mf.AutoMatchThreshold != nil {
		c.AutoMatchThreshold = *mf.AutoMatchThreshold
	}
	if mf.KnownCoinsPath != "" {
		c.KnownCoinsPath = mf.KnownCoinsPath
	}
	c.KnownCoins = append(c.KnownCoins, mf.KnownCoins...)
	log.Printf("Match config applied from %s", path)
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
