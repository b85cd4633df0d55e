// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs everything.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle and resolution decisions.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs skipped packages and rejected requests.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// DefaultScheme is the resource protocol scheme.
	DefaultScheme = "chrome-extension"
	// DefaultListen is the HTTP bridge address.
	DefaultListen = "127.0.0.1:7717"
	// DefaultDebounce is the watch debounce interval.
	DefaultDebounce = "300ms"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidListenAddress is returned when a ListenAddress is not host:port.
	ErrInvalidListenAddress = errors.New("invalid listen address")
	// ErrInvalidDebounce is returned when a watch debounce is not a positive duration.
	ErrInvalidDebounce = errors.New("invalid debounce")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is a configured log verbosity.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ListenAddress is a host:port the HTTP bridge binds to.
	ListenAddress string

	// InvalidListenAddressError is returned when a ListenAddress cannot be split.
	InvalidListenAddressError struct {
		Value ListenAddress
		Err   error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Scheme is the resource protocol scheme.
		Scheme string `json:"scheme" mapstructure:"scheme"`
		// StoreDir overrides the installed package store root.
		StoreDir string `json:"store_dir" mapstructure:"store_dir"`
		// EmbeddedDir overrides the embedded default bundle location.
		EmbeddedDir string `json:"embedded_dir" mapstructure:"embedded_dir"`
		// HostFile overrides the host.toml location.
		HostFile string `json:"host_file" mapstructure:"host_file"`
		// Listen is the HTTP bridge address.
		Listen ListenAddress `json:"listen" mapstructure:"listen"`
		// Watch configures run --watch.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
		// Log configures logging.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// WatchConfig configures the development watcher.
	WatchConfig struct {
		// Debounce is a Go duration string.
		Debounce string `json:"debounce" mapstructure:"debounce"`
		// Ignore lists doublestar patterns relative to the app directory.
		Ignore []string `json:"ignore" mapstructure:"ignore"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level   LogLevel `json:"level" mapstructure:"level"`
		Verbose bool     `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scheme: DefaultScheme,
		Listen: DefaultListen,
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   []string{"**/.git/**", "**/*.swp", "**/*~"},
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts to a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the ListenAddress.
func (a ListenAddress) String() string { return string(a) }

// IsValid returns whether the address splits into host and port.
func (a ListenAddress) IsValid() (bool, []error) {
	if _, _, err := net.SplitHostPort(string(a)); err != nil {
		return false, []error{&InvalidListenAddressError{Value: a, Err: err}}
	}
	return true, nil
}

// Error implements the error interface for InvalidListenAddressError.
func (e *InvalidListenAddressError) Error() string {
	return fmt.Sprintf("invalid listen address %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrInvalidListenAddress for errors.Is() compatibility.
func (e *InvalidListenAddressError) Unwrap() error { return ErrInvalidListenAddress }

// DebounceDuration parses Debounce, falling back to DefaultDebounce when empty.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	s := w.Debounce
	if s == "" {
		s = DefaultDebounce
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidDebounce, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s is not positive", ErrInvalidDebounce, s)
	}
	return d, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if ok, fieldErrs := c.Log.Level.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Listen.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.Watch.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
