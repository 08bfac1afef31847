package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds every environment-driven setting for the service.
type Config struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	MongoURI       string `env:"MONGO_URI"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`

	OTPWindowMinutes   int `env:"OTP_WINDOW_MINUTES" envDefault:"10"`
	ResetWindowMinutes int `env:"RESET_WINDOW_MINUTES" envDefault:"15"`
	OTPAttemptCeiling  int `env:"OTP_ATTEMPT_CEILING" envDefault:"5"`
	PasswordMinLength  int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
}

// RecoveryConfig is the slice of Config the password recovery core needs.
// It is passed by value at construction so tests can inject short windows.
type RecoveryConfig struct {
	OTPWindow         time.Duration
	ResetWindow       time.Duration
	AttemptCeiling    int
	PasswordMinLength int
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("missing MONGO_URI environment variable")
	}

	return &cfg, nil
}

func (c *Config) Recovery() RecoveryConfig {
	return RecoveryConfig{
		OTPWindow:         time.Duration(c.OTPWindowMinutes) * time.Minute,
		ResetWindow:       time.Duration(c.ResetWindowMinutes) * time.Minute,
		AttemptCeiling:    c.OTPAttemptCeiling,
		PasswordMinLength: c.PasswordMinLength,
	}
}
