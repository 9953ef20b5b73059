// Package config provides the ambient configuration surface for the client: base
// hosts, locale/platform identifiers sent on the streaming handshake, and the
// optional outbound proxy. It never carries session cookies or signing keys —
// those are held by the session manager and are not persisted.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultRESTBaseURL is the broker's REST facade host.
	DefaultRESTBaseURL = "https://api.traderepublic.com"
	// DefaultStreamingURL is the broker's streaming websocket endpoint.
	DefaultStreamingURL = "wss://api.traderepublic.com"
	// DefaultOrigin is sent as the Origin header on REST calls and the streaming upgrade.
	DefaultOrigin = "https://app.traderepublic.com"
	// DefaultPlatformID identifies the client platform on the handshake frame.
	DefaultPlatformID = "webtrading"
	// DefaultClientID identifies the client application on the handshake frame.
	DefaultClientID = "app.traderepublic.com"
	// DefaultClientVersion is the dotted client version sent on the handshake frame.
	DefaultClientVersion = "1.0.0"
	// DefaultLocale is used when the caller does not supply a language tag.
	DefaultLocale = "en"
)

// Config is an immutable snapshot of ambient client settings. Construct one with
// Load or New and treat it as read-only; internal/watcher.Watcher hands out new
// snapshots rather than mutating an existing one.
type Config struct {
	RESTBaseURL   string
	StreamingURL  string
	Origin        string
	PlatformID    string
	ClientID      string
	ClientVersion string
	Locale        string
	ProxyURL      string

	// LogFile, when non-empty, switches logging to a rotating file at this path.
	LogFile string
	// LogsMaxTotalSizeMB caps the total size of the log directory; <= 0 disables cleanup.
	LogsMaxTotalSizeMB int
}

// Default returns a Config populated with the broker's well-known hosts and
// identifiers, suitable as a starting point for Load/New overrides.
func Default() *Config {
	return &Config{
		RESTBaseURL:   DefaultRESTBaseURL,
		StreamingURL:  DefaultStreamingURL,
		Origin:        DefaultOrigin,
		PlatformID:    DefaultPlatformID,
		ClientID:      DefaultClientID,
		ClientVersion: DefaultClientVersion,
		Locale:        DefaultLocale,
	}
}

// Option mutates a Config snapshot at construction time.
type Option func(*Config)

// WithLocale overrides the language tag sent on the handshake frame.
func WithLocale(locale string) Option {
	return func(c *Config) {
		if v := strings.TrimSpace(locale); v != "" {
			c.Locale = v
		}
	}
}

// WithProxyURL configures an outbound proxy (http://, https://, or socks5://) for both
// the REST client and the streaming websocket dial.
func WithProxyURL(proxyURL string) Option {
	return func(c *Config) { c.ProxyURL = strings.TrimSpace(proxyURL) }
}

// WithRESTBaseURL overrides the REST facade host, useful for pointing at a sandbox.
func WithRESTBaseURL(url string) Option {
	return func(c *Config) {
		if v := strings.TrimSpace(url); v != "" {
			c.RESTBaseURL = v
		}
	}
}

// WithStreamingURL overrides the streaming websocket endpoint.
func WithStreamingURL(url string) Option {
	return func(c *Config) {
		if v := strings.TrimSpace(url); v != "" {
			c.StreamingURL = v
		}
	}
}

// WithLogFile routes logrus output to a rotating file instead of stdout.
func WithLogFile(path string, maxTotalSizeMB int) Option {
	return func(c *Config) {
		c.LogFile = strings.TrimSpace(path)
		c.LogsMaxTotalSizeMB = maxTotalSizeMB
	}
}

// New builds a Config from the broker defaults plus the supplied overrides.
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// Load autoloads a .env file (if present, mirroring the teacher's godotenv.Load()
// call in cmd/server/main.go) and layers environment-variable overrides on top of
// the broker defaults. Recognized variables: ZETA_REST_BASE_URL, ZETA_STREAMING_URL,
// ZETA_LOCALE, ZETA_PROXY_URL, ZETA_LOG_FILE, ZETA_LOG_MAX_TOTAL_SIZE_MB.
func Load(opts ...Option) *Config {
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("ZETA_REST_BASE_URL"); v != "" {
		cfg.RESTBaseURL = v
	}
	if v := os.Getenv("ZETA_STREAMING_URL"); v != "" {
		cfg.StreamingURL = v
	}
	if v := os.Getenv("ZETA_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("ZETA_PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("ZETA_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("ZETA_LOG_MAX_TOTAL_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LogsMaxTotalSizeMB = n
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// Clone returns a shallow copy, used by the watcher to publish a new immutable
// snapshot without mutating the one callers may still be holding.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
