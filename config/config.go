package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MongoURI      string `env:"MONGODB_URI,required,notEmpty"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"confique"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"168h"`
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/google/callback"`

	CloudinaryURL string `env:"CLOUDINARY_URL"`
	FrontendURL   string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	CronSecret    string `env:"CRON_SECRET,required,notEmpty"`

	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	ShowcaseDeadline time.Time `env:"SHOWCASE_DEADLINE" envDefault:"2025-11-30T18:29:59Z"`

	NotificationRetention       time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	NotificationCleanupSchedule string        `env:"NOTIFICATION_CLEANUP_SCHEDULE"`

	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT" envDefault:"mailto:admin@confique.app"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"30"`
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("CACHE_TTL must be positive")
	}
	if cfg.NotificationRetention <= 0 {
		return nil, errors.New("NOTIFICATION_RETENTION must be positive")
	}
	return cfg, nil
}
