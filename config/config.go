package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production")

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	TimeZone     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// BookingConfig tunes the slot calendar and the booking path.
type BookingConfig struct {
	// SlotCacheTTL bounds how stale a cached booked-slot set may be.
	SlotCacheTTL time.Duration
	// EnforceSlotGrid rejects timestamps that are not a weekday slot start.
	EnforceSlotGrid bool
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "4000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clinic")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")

	v.SetDefault("BOOKING_SLOT_CACHE_TTL", "30s")
	v.SetDefault("BOOKING_ENFORCE_SLOT_GRID", false)

	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

// Load reads configuration from the given env file, falling back to the
// environment and defaults when the file is missing.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// a missing .env is fine; the environment and defaults still apply
	_ = v.ReadInConfig()

	accessExpiry, err := time.ParseDuration(v.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(v.GetString("JWT_REFRESH_EXPIRY"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	slotCacheTTL, err := time.ParseDuration(v.GetString("BOOKING_SLOT_CACHE_TTL"))
	if err != nil {
		slotCacheTTL = 30 * time.Second
	}

	config := &Config{
		App: AppConfig{
			Port:     v.GetString("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			TimeZone:     v.GetString("DB_TIMEZONE"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Booking: BookingConfig{
			SlotCacheTTL:    slotCacheTTL,
			EnforceSlotGrid: v.GetBool("BOOKING_ENFORCE_SLOT_GRID"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	if config.JWT.Secret == "" && config.App.Env == "production" {
		return nil, ErrMissingJWTSecret
	}

	return config, nil
}

// DatabaseURL builds a pgx5:// URL for golang-migrate.
func (c DBConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
