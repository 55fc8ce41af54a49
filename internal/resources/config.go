// Package resources holds the process-wide Shared Resources component:
// resolved configuration, the event bus, the trust-token store, the
// metadata-fetch rate limiter, and the resolved zone descriptors (§4.4).
package resources

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// LogLevel enumerates the recognized log_level config values (§6).
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RateSpec is the (count, interval_ms) token-bucket parameter pair used
// for metadata_rate (§6).
type RateSpec struct {
	Count      int `validate:"required,gt=0"`
	IntervalMS int `validate:"required,gt=0"`
}

// Config is the flat record of recognized options consumed by Setup
// (§6); validation happens once, at construction, via struct tags.
type Config struct {
	DataDir  string `validate:"required"`
	Username string `validate:"required"`
	Password string `validate:"required"`

	TrustToken   string // overrides resource-file value if present
	RefreshToken bool   // if true, clears trust token on startup

	Port int `validate:"gte=0,lte=65535"`

	MaxRetries      int `validate:"gte=0"`
	DownloadThreads int `validate:"required,gt=0"`

	Schedule string // external scheduler hint, not used by core

	EnableCrashReporting bool
	FailOnMFA            bool
	Force                bool
	RemoteDelete         bool
	Silent               bool
	LogToCLI             bool
	SuppressWarnings     bool
	ExportMetrics        bool
	DryRun               bool

	LogLevel LogLevel `validate:"required,oneof=trace debug info warn error"`

	MetadataRate RateSpec `validate:"required"`

	// CacheFile, if set, enables the verified-hash cache (§4.1 ambient
	// addition). Empty disables caching.
	CacheFile string
}

// DefaultConfig returns a Config with the engine's recommended defaults
// applied; callers still must set DataDir/Username/Password.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      5,
		DownloadThreads: 4,
		Port:            10080,
		LogLevel:        LogLevelInfo,
		MetadataRate:    RateSpec{Count: 20, IntervalMS: 1000},
	}
}

var validate = validator.New()

// Validate checks the configuration against the recognized-option rules.
// Returned errors wrap validator's field errors for diagnostic display.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
