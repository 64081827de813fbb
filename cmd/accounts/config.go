package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/accounts/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultSiteURL      = "http://localhost:8000"
	defaultTokenTTL     = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the accounts service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Signs JWT access tokens and activation/reset tokens
	SecretKey string

	// Environment
	Environment string

	// Base url embedded into activation and reset links
	SiteURL string

	// Activation and reset tokens lifetime
	TokenTTL time.Duration

	// SMTP endpoint for outgoing mail
	// If address is empty letters go to the log instead
	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		SiteURL:     defaultSiteURL,
		TokenTTL:    defaultTokenTTL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":   setString(&c.ListenAddr),
		"DATABASE_URI":  setString(&c.DatabaseDSN),
		"SECRET_KEY":    setString(&c.SecretKey),
		"LOG_LEVEL":     setString(&c.LogLevel),
		"ENVIRONMENT":   setString(&c.Environment),
		"SITE_URL":      setString(&c.SiteURL),
		"TOKEN_TTL":     setDuration(&c.TokenTTL),
		"SMTP_ADDR":     setString(&c.SMTPAddr),
		"SMTP_USER":     setString(&c.SMTPUser),
		"SMTP_PASSWORD": setString(&c.SMTPPassword),
		"SMTP_FROM":     setString(&c.SMTPFrom),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("error while parsing env %s. Err: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("accounts", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.SiteURL, "site-url", c.SiteURL, "Base url for activation and reset links")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Activation and reset tokens lifetime")
	fs.StringVar(&c.SMTPAddr, "smtp-addr", c.SMTPAddr, "SMTP endpoint host:port (if empty letters go to the log)")
	fs.StringVar(&c.SMTPUser, "smtp-user", c.SMTPUser, "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", c.SMTPFrom, "Sender address for outgoing mail")

	return fs.Parse(args)
}
