// Package sdk is the public, externally-facing API: a Client that wraps
// login, the read-only account operations, and a nested streaming handle.
//
// Grounded on the teacher's sdk/config re-export convention (sdk/config
// simply aliases internal/config's types so external importers never reach
// into internal/), applied here to the same internal/config package.
package sdk

import internalconfig "github.com/otterbroker/zetaclient/internal/config"

// Config re-exports internal/config.Config for external callers.
type Config = internalconfig.Config

// Option re-exports internal/config.Option.
type Option = internalconfig.Option

var (
	WithLocale       = internalconfig.WithLocale
	WithProxyURL     = internalconfig.WithProxyURL
	WithRESTBaseURL  = internalconfig.WithRESTBaseURL
	WithStreamingURL = internalconfig.WithStreamingURL
	WithLogFile      = internalconfig.WithLogFile
)

// NewConfig builds a Config from the given options, layered over defaults.
func NewConfig(opts ...Option) *Config { return internalconfig.New(opts...) }

// LoadConfig builds a Config from environment variables and an optional
// .env file (via godotenv), layered over the given options.
func LoadConfig(opts ...Option) *Config { return internalconfig.Load(opts...) }
