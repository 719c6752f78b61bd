package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	UIModeLine = "line"
	UIModeTUI  = "tui"

	ThemeDark  = "dark"
	ThemeLight = "light"
)

const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultDBPath         = "shurahub.db"
	DefaultLogDir         = "logs"
	DefaultFlushWindow    = 100 * time.Millisecond
	DefaultReconnectDelay = 2 * time.Second
)

// Config holds application configuration
type Config struct {
	BaseURL       string // Backend origin, e.g. "https://shurahub.app"
	SessionCookie string // Value of the "user-session" cookie for authenticated users
	DBPath        string // SQLite file holding preferences and the local archive
	Theme         string // Preferred theme when none is stored yet
	UIMode        string // "line" or "tui"
	LogDir        string
	NoColor       bool // Render markdown without ANSI styling
	Debug         bool

	FlushWindow    time.Duration // Debounce window for streaming renders
	ReconnectDelay time.Duration // Fixed delay between reconnect attempts
}

// Default returns a Config populated from the environment. A ".env" file in
// the working directory is loaded first when present.
func Default() Config {
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:        DefaultBaseURL,
		DBPath:         DefaultDBPath,
		Theme:          ThemeDark,
		UIMode:         UIModeLine,
		LogDir:         DefaultLogDir,
		FlushWindow:    DefaultFlushWindow,
		ReconnectDelay: DefaultReconnectDelay,
	}
	if v := os.Getenv("SHURAHUB_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SHURAHUB_SESSION_COOKIE"); v != "" {
		cfg.SessionCookie = v
	}
	if v := os.Getenv("SHURAHUB_DB"); v != "" {
		cfg.DBPath = v
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.NoColor = true
	}
	return cfg
}

// Validate checks the configuration and normalizes the base URL
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base url has no host: %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	switch c.UIMode {
	case UIModeLine, UIModeTUI:
	default:
		return fmt.Errorf("unknown ui mode: %s", c.UIMode)
	}
	switch c.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("unknown theme: %s", c.Theme)
	}
	if c.FlushWindow <= 0 {
		return fmt.Errorf("flush window must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	return nil
}

// LoggedIn reports whether a session cookie was configured
func (c Config) LoggedIn() bool {
	return c.SessionCookie != ""
}
