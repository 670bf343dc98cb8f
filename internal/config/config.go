package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// Config holds settings shared by every command, loaded from environment variables.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	JournalPath string `envconfig:"JOURNAL_PATH" default:"./data/stockwatch.db"`
	// LogRetain is the number of journal rows kept at startup.
	LogRetain int `envconfig:"LOG_RETAIN" default:"10000"`
	// HTTPAddr serves healthz and metrics. Empty disables the listener.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// CatalogPath empty means the embedded catalog.
	CatalogPath string `envconfig:"CATALOG_PATH"`
	// Products is the initial selection. Empty means the catalog default.
	Products        []string `envconfig:"PRODUCTS"`
	IntervalMinutes int      `envconfig:"CHECK_INTERVAL_MINUTES" default:"30"`
	NotifyStates    []string `envconfig:"NOTIFY_STATES" default:"in_stock,coming_soon"`

	Workers      int           `envconfig:"FETCH_WORKERS" default:"4"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	// FetchBackend is http or chrome.
	FetchBackend string `envconfig:"FETCH_BACKEND" default:"http"`
	// FetchRPM of 0 means unlimited.
	FetchRPM   int    `envconfig:"FETCH_RPM" default:"0"`
	UserAgent  string `envconfig:"USER_AGENT"`
	ChromePath string `envconfig:"CHROME_PATH"`

	BlackoutStart string `envconfig:"BLACKOUT_START" default:"saturday"`
	// BlackoutDays of 0 disables the blackout window.
	BlackoutDays int    `envconfig:"BLACKOUT_DAYS" default:"2"`
	TZ           string `envconfig:"TZ_NAME" default:"America/New_York"`
}

// Telegram holds the credentials needed to run the bot.
type Telegram struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	ChatID   int64  `envconfig:"CHAT_ID" required:"true"`
}

// LoadDotEnv loads variables from .env files when present. Existing
// environment variables win.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads environment variables into Config and validates them.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadTelegram reads the bot credentials. Missing values wrap domain.ErrMissingCredentials.
func LoadTelegram() (Telegram, error) {
	var t Telegram
	if err := envconfig.Process("", &t); err != nil {
		return t, fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err)
	}
	if t.ChatID == 0 {
		return t, fmt.Errorf("%w: CHAT_ID is zero", domain.ErrMissingCredentials)
	}
	return t, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if err := domain.ValidateIntervalMinutes(c.IntervalMinutes); err != nil {
		return fmt.Errorf("CHECK_INTERVAL_MINUTES: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.BlackoutDays < 0 || c.BlackoutDays > 7 {
		return fmt.Errorf("BLACKOUT_DAYS must be 0..7, got %d", c.BlackoutDays)
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := domain.ParseNotifyPolicy(c.NotifyStates); err != nil {
		return fmt.Errorf("NOTIFY_STATES: %w", err)
	}
	return nil
}

// Window builds the blackout window from BLACKOUT_* and TZ_NAME.
func (c Config) Window() (domain.BlackoutWindow, error) {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return domain.BlackoutWindow{}, fmt.Errorf("TZ_NAME: %w", err)
	}
	start, err := domain.ParseWeekday(c.BlackoutStart)
	if err != nil {
		return domain.BlackoutWindow{}, fmt.Errorf("BLACKOUT_START: %w", err)
	}
	return domain.BlackoutWindow{Start: start, Days: c.BlackoutDays, Location: loc}, nil
}

// NotifyPolicy parses NOTIFY_STATES.
func (c Config) NotifyPolicy() domain.NotifyPolicy {
	p, err := domain.ParseNotifyPolicy(c.NotifyStates)
	if err != nil {
		return domain.DefaultNotifyPolicy()
	}
	return p
}
