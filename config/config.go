// Package config loads runtime configuration from flags with environment
// fallback. A .env file in the working directory is honored when present.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabasePath string
	DataDir      string

	Difficulty         uint8
	FaceMatchThreshold float64

	CodeTTL       time.Duration
	RequestWindow time.Duration
	RequestCap    int
	AttemptCap    int

	NotifierURL     string
	NotifierKey     string
	NotifierTimeout time.Duration

	TokenSecret string
	TokenTTL    time.Duration
}

// Load parses args, falling back to environment variables for secrets and
// connection settings.
func Load(args []string) (*Config, error) {
	// Missing .env is fine; env vars may come from the environment proper.
	_ = godotenv.Load()

	cfg := &Config{}
	fs := flag.NewFlagSet("votechain", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "port", 8080, "Server port")
	fs.StringVar(&cfg.DatabasePath, "db", "", "Sqlite database path")
	fs.StringVar(&cfg.DataDir, "data", "data", "Directory for operator credentials and database")

	var difficulty int
	fs.IntVar(&difficulty, "difficulty", 2, "Mining difficulty (leading zero hex chars, 0-8)")
	fs.Float64Var(&cfg.FaceMatchThreshold, "face-threshold", 0.60, "Biometric match distance threshold")

	fs.DurationVar(&cfg.CodeTTL, "code-ttl", 2*time.Minute, "One-time code validity")
	fs.DurationVar(&cfg.RequestWindow, "request-window", 10*time.Minute, "Code request rate window")
	fs.IntVar(&cfg.RequestCap, "request-cap", 3, "Max code requests per window")
	fs.IntVar(&cfg.AttemptCap, "attempt-cap", 2, "Max failed code verifications")

	fs.StringVar(&cfg.NotifierURL, "notifier-url", "", "Mail gateway endpoint (empty uses the mock)")
	fs.StringVar(&cfg.NotifierKey, "notifier-key", "", "Mail gateway API key (prefer env NOTIFIER_KEY)")
	fs.DurationVar(&cfg.NotifierTimeout, "notifier-timeout", 10*time.Second, "Mail gateway timeout")

	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "Bearer token secret (prefer env TOKEN_SECRET)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "Bearer token validity")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if difficulty < 0 || difficulty > 8 {
		return nil, fmt.Errorf("difficulty must be between 0 and 8, got %d", difficulty)
	}
	cfg.Difficulty = uint8(difficulty)

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	}
	if cfg.NotifierURL == "" {
		cfg.NotifierURL = os.Getenv("NOTIFIER_URL")
	}
	if cfg.NotifierKey == "" {
		cfg.NotifierKey = os.Getenv("NOTIFIER_KEY")
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is required (flag -token-secret or env TOKEN_SECRET)")
	}

	if portStr := os.Getenv("PORT"); portStr != "" && cfg.Port == 8080 {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT env variable: %q", portStr)
		}
		cfg.Port = port
	}

	return cfg, nil
}
