// Package config loads the service configuration.
//
// Sources, highest precedence first:
//  1. command-line flags bound by cmd/quiethours
//  2. QH_* environment variables (QH_DB_PATH, QH_NOTIFIER, ...)
//  3. an optional .env file, loaded into the environment
//  4. the defaults below
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "QH"

// Config keys. Flags use the same names.
const (
	KeyPort                = "port"
	KeyDBPath              = "db-path"
	KeyLogLevel            = "log-level"
	KeyLogFormat           = "log-format"
	KeyJWTSecret           = "jwt-secret"
	KeyCookieSecure        = "cookie-secure"
	KeyGitHubClientID      = "github-client-id"
	KeyGitHubClientSecret  = "github-client-secret"
	KeyGitHubCallbackURL   = "github-callback-url"
	KeyNotifier            = "notifier"
	KeySendGridAPIKey      = "sendgrid-api-key"
	KeyResendAPIKey        = "resend-api-key"
	KeyFromName            = "from-name"
	KeyFromEmail           = "from-email"
	KeyDisplayTimezone     = "display-timezone"
	KeyDispatchToken       = "dispatch-token"
	KeyDispatchInterval    = "dispatch-interval"
	KeyDispatchConcurrency = "dispatch-concurrency"
)

const (
	NotifierConsole  = "console"
	NotifierSendGrid = "sendgrid"
	NotifierResend   = "resend"
)

type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string

	JWTSecret          string
	CookieSecure       bool
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	Notifier       string
	SendGridAPIKey string
	ResendAPIKey   string
	FromName       string
	FromEmail      string

	DisplayTimezone     string
	DispatchToken       string
	DispatchInterval    time.Duration
	DispatchConcurrency int
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDBPath, "data/quiet-hours.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyCookieSecure, false)
	v.SetDefault(KeyNotifier, NotifierConsole)
	v.SetDefault(KeyFromName, "Quiet Hours")
	v.SetDefault(KeyFromEmail, "noreply@localhost")
	v.SetDefault(KeyDisplayTimezone, "UTC")
	v.SetDefault(KeyDispatchInterval, time.Duration(0))
	v.SetDefault(KeyDispatchConcurrency, 1)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads path into the process environment if the file exists.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Load reads every key from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:      v.GetInt(KeyPort),
		DBPath:    v.GetString(KeyDBPath),
		LogLevel:  strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat: strings.ToLower(v.GetString(KeyLogFormat)),

		JWTSecret:          v.GetString(KeyJWTSecret),
		CookieSecure:       v.GetBool(KeyCookieSecure),
		GitHubClientID:     v.GetString(KeyGitHubClientID),
		GitHubClientSecret: v.GetString(KeyGitHubClientSecret),
		GitHubCallbackURL:  v.GetString(KeyGitHubCallbackURL),

		Notifier:       strings.ToLower(v.GetString(KeyNotifier)),
		SendGridAPIKey: v.GetString(KeySendGridAPIKey),
		ResendAPIKey:   v.GetString(KeyResendAPIKey),
		FromName:       v.GetString(KeyFromName),
		FromEmail:      v.GetString(KeyFromEmail),

		DisplayTimezone:     v.GetString(KeyDisplayTimezone),
		DispatchToken:       v.GetString(KeyDispatchToken),
		DispatchInterval:    v.GetDuration(KeyDispatchInterval),
		DispatchConcurrency: v.GetInt(KeyDispatchConcurrency),
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that cannot work together. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", KeyPort, c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyDBPath))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.LogFormat))
	}

	switch c.Notifier {
	case NotifierConsole:
	case NotifierSendGrid:
		if c.SendGridAPIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s=%s", KeySendGridAPIKey, KeyNotifier, NotifierSendGrid))
		}
	case NotifierResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s=%s", KeyResendAPIKey, KeyNotifier, NotifierResend))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be console, sendgrid or resend, got %q", KeyNotifier, c.Notifier))
	}

	if _, err := mail.ParseAddress(c.FromEmail); err != nil {
		errs = append(errs, fmt.Errorf("%s is not a valid address: %w", KeyFromEmail, err))
	}
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyDisplayTimezone, err))
	}
	if c.DispatchInterval < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyDispatchInterval))
	}
	if c.DispatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyDispatchConcurrency, c.DispatchConcurrency))
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", KeyGitHubClientID, KeyGitHubClientSecret))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// GitHubEnabled reports whether GitHub login is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Location returns the display time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FromAddress is the sender of reminder emails.
func (c *Config) FromAddress() mail.Address {
	return mail.Address{Name: c.FromName, Address: c.FromEmail}
}

func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%s must be debug, info, warn or error, got %q", KeyLogLevel, c.LogLevel)
	}
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
