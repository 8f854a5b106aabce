// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/cueutil"
)

const (
	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only reports warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only reports errors.
	LogLevelError LogLevel = "error"

	// DefaultJobs is the default build concurrency.
	DefaultJobs = 4
	// DefaultFetchTimeout is the default per-download timeout.
	DefaultFetchTimeout Duration = "10m"
	// MinMaxFileSize is the smallest accepted channel file size limit.
	MinMaxFileSize int64 = 1024
)

var (
	// ErrInvalidDirPath is returned when a directory setting is whitespace-only.
	ErrInvalidDirPath = errors.New("invalid directory path")
	// ErrInvalidJobs is returned when the job count is out of range.
	ErrInvalidJobs = errors.New("invalid job count")
	// ErrInvalidMaxFileSize is returned when the channel file size limit is too small.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidDuration is returned when a Duration does not parse or is not positive.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidLogConfig is the sentinel error wrapped by InvalidLogConfigError.
	ErrInvalidLogConfig = errors.New("invalid log config")
	// ErrInvalidFetchConfig is the sentinel error wrapped by InvalidFetchConfigError.
	ErrInvalidFetchConfig = errors.New("invalid fetch config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// DirPath is a directory setting. The zero value means "use the default location".
	DirPath string

	// InvalidDirPathError is returned when a DirPath is non-empty but whitespace-only.
	InvalidDirPathError struct {
		Field string
		Value DirPath
	}

	// InvalidJobsError is returned when Jobs is below 1.
	InvalidJobsError struct {
		Value int
	}

	// InvalidMaxFileSizeError is returned when MaxFileSize is below MinMaxFileSize.
	InvalidMaxFileSizeError struct {
		Value int64
	}

	// LogLevel names a charmbracelet/log level.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// Duration is a time.ParseDuration string kept verbatim so it round-trips
	// through the CUE file.
	Duration string

	// InvalidDurationError is returned when a Duration does not parse or is not positive.
	InvalidDurationError struct {
		Value Duration
	}

	// InvalidLogConfigError is returned when a LogConfig has invalid fields.
	InvalidLogConfigError struct {
		FieldErrors []error
	}

	// InvalidFetchConfigError is returned when a FetchConfig has invalid fields.
	InvalidFetchConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// StoreDir holds realized packages and receipts.
		StoreDir DirPath `json:"store_dir" mapstructure:"store_dir"`
		// CacheDir holds content-addressed downloads.
		CacheDir DirPath `json:"cache_dir" mapstructure:"cache_dir"`
		// WorkDir holds staging directories and computed sources.
		WorkDir DirPath `json:"work_dir" mapstructure:"work_dir"`
		// Channels lists the directories searched for recipes.
		Channels []string `json:"channels" mapstructure:"channels"`
		// Jobs bounds the number of concurrent builds.
		Jobs int `json:"jobs" mapstructure:"jobs"`
		// MaxFileSize bounds the size of each channel file in bytes.
		MaxFileSize int64     `json:"max_file_size" mapstructure:"max_file_size"`
		Log         LogConfig `json:"log" mapstructure:"log"`
		// VirtualShell configures the phase script interpreter.
		VirtualShell VirtualShellConfig `json:"virtual_shell" mapstructure:"virtual_shell"`
		Fetch        FetchConfig        `json:"fetch" mapstructure:"fetch"`

		// Source is the config file that was loaded, empty when only defaults
		// and environment overrides apply.
		Source string `json:"-" mapstructure:"-"`
	}

	// LogConfig configures the process logger.
	LogConfig struct {
		Level  LogLevel       `json:"level" mapstructure:"level"`
		Format logging.Format `json:"format" mapstructure:"format"`
	}

	// VirtualShellConfig configures the phase script interpreter.
	VirtualShellConfig struct {
		// EnableBuiltins exposes the u-root core utilities to scripts.
		EnableBuiltins bool `json:"enable_builtins" mapstructure:"enable_builtins"`
	}

	// FetchConfig configures source downloads.
	FetchConfig struct {
		Timeout Duration `json:"timeout" mapstructure:"timeout"`
	}
)

// String returns the string representation of the DirPath.
func (p DirPath) String() string { return string(p) }

// IsValid returns whether the DirPath is valid.
// The zero value is valid; non-zero values must not be whitespace-only.
func (p DirPath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDirPathError.
func (e *InvalidDirPathError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid directory path %q: non-empty value must not be whitespace-only", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid directory path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidDirPath for errors.Is() compatibility.
func (e *InvalidDirPathError) Unwrap() error { return ErrInvalidDirPath }

// Error implements the error interface for InvalidJobsError.
func (e *InvalidJobsError) Error() string {
	return fmt.Sprintf("invalid job count %d: must be at least 1", e.Value)
}

// Unwrap returns ErrInvalidJobs for errors.Is() compatibility.
func (e *InvalidJobsError) Unwrap() error { return ErrInvalidJobs }

// Error implements the error interface for InvalidMaxFileSizeError.
func (e *InvalidMaxFileSizeError) Error() string {
	return fmt.Sprintf("invalid max file size %d: must be at least %d bytes", e.Value, MinMaxFileSize)
}

// Unwrap returns ErrInvalidMaxFileSize for errors.Is() compatibility.
func (e *InvalidMaxFileSizeError) Unwrap() error { return ErrInvalidMaxFileSize }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
// The zero value means info.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the Duration.
func (d Duration) String() string { return string(d) }

// Parse converts the Duration. The zero value parses as DefaultFetchTimeout.
func (d Duration) Parse() (time.Duration, error) {
	if d == "" {
		d = DefaultFetchTimeout
	}
	parsed, err := time.ParseDuration(string(d))
	if err != nil || parsed <= 0 {
		return 0, &InvalidDurationError{Value: d}
	}
	return parsed, nil
}

// IsValid returns whether the Duration parses to a positive value.
func (d Duration) IsValid() (bool, []error) {
	if _, err := d.Parse(); err != nil {
		return false, []error{err}
	}
	return true, nil
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: must be a positive Go duration such as \"90s\" or \"10m\"", e.Value)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// IsValid returns whether the LogConfig has valid fields.
func (c LogConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLogConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLogConfigError.
func (e *InvalidLogConfigError) Error() string {
	return fmt.Sprintf("invalid log config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLogConfig for errors.Is() compatibility.
func (e *InvalidLogConfigError) Unwrap() error { return ErrInvalidLogConfig }

// IsValid returns whether the FetchConfig has valid fields.
func (c FetchConfig) IsValid() (bool, []error) {
	if valid, fieldErrs := c.Timeout.IsValid(); !valid {
		return false, []error{&InvalidFetchConfigError{FieldErrors: fieldErrs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidFetchConfigError.
func (e *InvalidFetchConfigError) Error() string {
	return fmt.Sprintf("invalid fetch config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidFetchConfig for errors.Is() compatibility.
func (e *InvalidFetchConfigError) Unwrap() error { return ErrInvalidFetchConfig }

// IsValid returns whether the Config has valid fields.
// VirtualShell has only bool fields and needs no validation.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	dirs := []struct {
		field string
		value DirPath
	}{{"store_dir", c.StoreDir}, {"cache_dir", c.CacheDir}, {"work_dir", c.WorkDir}}
	for _, d := range dirs {
		if valid, _ := d.value.IsValid(); !valid {
			errs = append(errs, &InvalidDirPathError{Field: d.field, Value: d.value})
		}
	}
	for i, ch := range c.Channels {
		if strings.TrimSpace(ch) == "" {
			errs = append(errs, &InvalidDirPathError{Field: fmt.Sprintf("channels[%d]", i), Value: DirPath(ch)})
		}
	}
	if c.Jobs < 1 {
		errs = append(errs, &InvalidJobsError{Value: c.Jobs})
	}
	if c.MaxFileSize < MinMaxFileSize {
		errs = append(errs, &InvalidMaxFileSizeError{Value: c.MaxFileSize})
	}
	if valid, fieldErrs := c.Log.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Fetch.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration. Directory settings are left
// empty and resolved by Dirs.
func DefaultConfig() *Config {
	return &Config{
		Channels:    []string{},
		Jobs:        DefaultJobs,
		MaxFileSize: cueutil.DefaultMaxFileSize,
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: logging.FormatText,
		},
		VirtualShell: VirtualShellConfig{
			EnableBuiltins: true,
		},
		Fetch: FetchConfig{
			Timeout: DefaultFetchTimeout,
		},
	}
}
