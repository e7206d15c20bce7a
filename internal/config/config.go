// Package config provides configuration management for wikilight using Viper
// for loading from files, environment variables, and command-line flags.
//
// Values come, in order of precedence, from flags, WIKILIGHT_ environment
// variables and a .wikilight.yml file. Load applies defaults for anything
// unset and rejects values that are out of range or unsafe to use as hosts
// and paths.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. WIKILIGHT_SERVER_PORT.
const EnvPrefix = "WIKILIGHT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Editor    EditorConfig    `mapstructure:"editor" yaml:"editor"`
	Highlight HighlightConfig `mapstructure:"highlight" yaml:"highlight"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type EditorConfig struct {
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

type HighlightConfig struct {
	MatchTimeout time.Duration `mapstructure:"match_timeout" yaml:"match_timeout"`
	CacheSize    int           `mapstructure:"cache_size" yaml:"cache_size"`
	Sanitize     bool          `mapstructure:"sanitize" yaml:"sanitize"`
}

type WatchConfig struct {
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
	OutputDir  string        `mapstructure:"output_dir" yaml:"output_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Exporter    string `mapstructure:"exporter" yaml:"exporter"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	FilePath    string `mapstructure:"file_path" yaml:"file_path"`
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// SetupEnv makes WIKILIGHT_SECTION_KEY override section.key on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("editor.debounce", 300*time.Millisecond)
	v.SetDefault("editor.session_ttl", 30*time.Minute)
	v.SetDefault("highlight.match_timeout", 250*time.Millisecond)
	v.SetDefault("highlight.cache_size", 256)
	v.SetDefault("highlight.sanitize", false)
	v.SetDefault("watch.extensions", []string{".wiki", ".mediawiki", ".mw"})
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("watch.output_dir", "./highlighted")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.service_name", "wikilight")
	v.SetDefault("tracing.file_path", "")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set via env or flags arrive as a single comma-separated string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("watch.extensions") && len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = v.GetStringSlice("watch.extensions")
	}
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Watch.Extensions = normalizeExtensions(splitList(config.Watch.Extensions))

	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	config.Tracing.Exporter = strings.ToLower(strings.TrimSpace(config.Tracing.Exporter))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateEditorConfig(&config.Editor); err != nil {
		return fmt.Errorf("editor config: %w", err)
	}
	if err := validateHighlightConfig(&config.Highlight); err != nil {
		return fmt.Errorf("highlight config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := validateTracingConfig(&config.Tracing); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}
	return nil
}

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system assign one, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	for _, origin := range config.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") && origin != "*" {
			return fmt.Errorf("allowed origin %q must be an http(s) URL or *", origin)
		}
	}

	return nil
}

func validateEditorConfig(config *EditorConfig) error {
	if config.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", config.Debounce)
	}
	if config.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", config.SessionTTL)
	}
	return nil
}

func validateHighlightConfig(config *HighlightConfig) error {
	if config.MatchTimeout <= 0 {
		return fmt.Errorf("match_timeout must be positive, got %s", config.MatchTimeout)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", config.CacheSize)
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", config.Debounce)
	}
	if len(config.Extensions) == 0 {
		return fmt.Errorf("at least one extension is required")
	}
	if err := validatePath(config.OutputDir); err != nil {
		return fmt.Errorf("invalid output_dir '%s': %w", config.OutputDir, err)
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	switch config.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}
	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q", config.Format)
	}
	return nil
}

func validateTracingConfig(config *TracingConfig) error {
	switch config.Exporter {
	case "stdout", "file", "none":
	default:
		return fmt.Errorf("unknown exporter %q", config.Exporter)
	}
	if !config.Enabled {
		return nil
	}
	if strings.TrimSpace(config.ServiceName) == "" {
		return fmt.Errorf("service_name is required when tracing is enabled")
	}
	if config.Exporter == "file" {
		if err := validatePath(config.FilePath); err != nil {
			return fmt.Errorf("invalid file_path '%s': %w", config.FilePath, err)
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	for _, char := range dangerousChars[:len(dangerousChars)-1] {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
