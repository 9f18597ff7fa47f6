package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppPort        = "8080"
	defaultLocale         = "cs"
	defaultNotifyTokenTTL = 72 * time.Hour
	defaultRedisLockTTL   = 30 * time.Second
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	GoPayGoID          string
	GoPayClientID      string
	GoPayClientSecret  string
	GoPayProduction    bool
	GoPayDefaultLocale string
	NotifyTokenSecret  string
	NotifyTokenTTL     time.Duration
	PublicBaseURL      string

	// Optional. Set RedisAddr when more than one instance serves checkout.
	RedisAddr     string
	RedisPassword string
	RedisLockTTL  time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", defaultAppPort),
		AppEnv:     os.Getenv("APP_ENV"),

		GoPayGoID:          os.Getenv("GOPAY_GOID"),
		GoPayClientID:      os.Getenv("GOPAY_CLIENT_ID"),
		GoPayClientSecret:  os.Getenv("GOPAY_CLIENT_SECRET"),
		GoPayProduction:    getBool("GOPAY_PRODUCTION", false),
		GoPayDefaultLocale: getEnv("GOPAY_DEFAULT_LOCALE", defaultLocale),
		NotifyTokenSecret:  os.Getenv("NOTIFY_TOKEN_SECRET"),
		NotifyTokenTTL:     getDuration("NOTIFY_TOKEN_TTL", defaultNotifyTokenTTL),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisLockTTL:  getDuration("REDIS_LOCK_TTL", defaultRedisLockTTL),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// ValidateGoPay reports the first missing setting the payment flow needs.
func (c *Config) ValidateGoPay() error {
	switch {
	case c.GoPayGoID == "":
		return errors.New("GOPAY_GOID is not set")
	case c.GoPayClientID == "" || c.GoPayClientSecret == "":
		return errors.New("GOPAY_CLIENT_ID and GOPAY_CLIENT_SECRET must be set")
	case c.NotifyTokenSecret == "":
		return errors.New("NOTIFY_TOKEN_SECRET is not set")
	case c.PublicBaseURL == "":
		return errors.New("PUBLIC_BASE_URL is not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
