package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}
	write("Errors", vr.Errors)
	write("Warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateWithDetails checks a loaded configuration and reports errors
// together with advisory warnings, e.g. values that work but make the editor
// feel sluggish.
func ValidateWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServerDetails(&config.Server, result)
	validateEditorDetails(&config.Editor, result)
	validateHighlightDetails(&config.Highlight, result)
	validateWatchDetails(&config.Watch, result)

	if err := validateLoggingConfig(&config.Logging); err != nil {
		result.addError("logging", config.Logging, err.Error(),
			"Levels: debug, info, warn, error", "Formats: text, json")
	}
	if err := validateTracingConfig(&config.Tracing); err != nil {
		result.addError("tracing", config.Tracing, err.Error(),
			"Exporters: stdout, file, none")
	}

	result.Valid = !result.HasErrors()
	return result
}

func validateServerDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port",
		)
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development",
		)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local editing",
				"Use '0.0.0.0' to bind to all interfaces",
			)
		}
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.addWarning("server.allowed_origins", origin,
				"any page can open an editor session",
				"List the origins that embed the editor instead",
			)
		}
	}
}

func validateEditorDetails(config *EditorConfig, result *ValidationResult) {
	if config.Debounce <= 0 {
		result.addError("editor.debounce", config.Debounce, "debounce must be positive",
			"300ms keeps up with typing without re-highlighting every keystroke")
	} else if config.Debounce > 2*time.Second {
		result.addWarning("editor.debounce", config.Debounce, "overlay will lag noticeably behind typing")
	}
	if config.SessionTTL <= 0 {
		result.addError("editor.session_ttl", config.SessionTTL, "session_ttl must be positive")
	}
}

func validateHighlightDetails(config *HighlightConfig, result *ValidationResult) {
	if config.MatchTimeout <= 0 {
		result.addError("highlight.match_timeout", config.MatchTimeout, "match_timeout must be positive")
	} else if config.MatchTimeout > 5*time.Second {
		result.addWarning("highlight.match_timeout", config.MatchTimeout,
			"a pathological document can stall rendering this long per rule")
	}
	if config.CacheSize < 0 {
		result.addError("highlight.cache_size", config.CacheSize, "cache_size must not be negative")
	} else if config.CacheSize == 0 {
		result.addWarning("highlight.cache_size", config.CacheSize, "0 falls back to the default size")
	}
}

func validateWatchDetails(config *WatchConfig, result *ValidationResult) {
	if err := validateWatchConfig(config); err != nil {
		result.addError("watch", config, err.Error())
	}
	for _, ext := range config.Extensions {
		if !contains([]string{".wiki", ".mediawiki", ".mw", ".txt"}, ext) {
			result.addWarning("watch.extensions", ext, fmt.Sprintf("unusual extension '%s'", ext))
		}
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
