// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for thicode.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.thicode/config.toml
//   - ~/.thicode/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/thicode-tui/internal/util"
)

// HomeEnv overrides the configuration directory (default ~/.thicode).
const HomeEnv = "THICODE_HOME"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete thicode configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend connection
	Server ServerConfig `toml:"server" json:"server"`

	// Conversation behaviour
	Chat ChatConfig `toml:"chat" json:"chat"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Local persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Log output
	Log LogConfig `toml:"log" json:"log"`
}

// ServerConfig describes how to reach the chat backend.
type ServerConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds a single HTTP request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimit is the maximum number of requests per second (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the token bucket size for RateLimit
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// ChatConfig contains conversation and polling settings.
type ChatConfig struct {
	// DefaultModel is sent with new messages when no model is given
	DefaultModel string `toml:"default_model" json:"default_model"`
	// PollIntervalSecs is how often a pending message's status is checked
	PollIntervalSecs int `toml:"poll_interval_secs" json:"poll_interval_secs"`
	// PollTimeoutSecs is how long to wait for a reply before giving up
	PollTimeoutSecs int `toml:"poll_timeout_secs" json:"poll_timeout_secs"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "system"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders assistant replies as markdown
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the wrap width for rendered replies in CLI output
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// StorageConfig contains local persistence settings.
type StorageConfig struct {
	// CacheEnabled keeps a copy of fetched conversations for --offline use
	CacheEnabled bool `toml:"cache_enabled" json:"cache_enabled"`
	// CachePath is the sqlite cache file (empty = ~/.thicode/cache.db)
	CachePath string `toml:"cache_path" json:"cache_path"`
	// SessionPath stores session cookies between runs (empty = ~/.thicode/session.json)
	SessionPath string `toml:"session_path" json:"session_path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Path is the log file (empty = ~/.thicode/thicode.log)
	Path string `toml:"path" json:"path"`
}

// PollInterval returns the poll interval as a duration.
func (c ChatConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// PollTimeout returns the poll timeout as a duration.
func (c ChatConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSecs) * time.Second
}

// Timeout returns the per-request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 30,
			RateLimit:   10,
			RateBurst:   20,
		},

		Chat: ChatConfig{
			DefaultModel:     "mistral",
			PollIntervalSecs: 2,
			PollTimeoutSecs:  300,
		},

		UI: UIConfig{
			Theme:    "system",
			Markdown: true,
			WordWrap: 80,
		},

		Storage: StorageConfig{
			CacheEnabled: true,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the thicode configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".thicode"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return inConfigDir("config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	return inConfigDir("config.json")
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// CachePath returns the resolved sqlite cache path.
func (c *Config) CachePath() (string, error) {
	if c.Storage.CachePath != "" {
		return c.Storage.CachePath, nil
	}
	return inConfigDir("cache.db")
}

// SessionPath returns the resolved session cookie file path.
func (c *Config) SessionPath() (string, error) {
	if c.Storage.SessionPath != "" {
		return c.Storage.SessionPath, nil
	}
	return inConfigDir("session.json")
}

// LogPath returns the resolved log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	return inConfigDir("thicode.log")
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	// Defaults, with any load error for informational purposes
	cfg = Default()
	cfg, err = finish(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish runs the shared post-load pipeline.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Written with 0600 permissions via an atomic rename.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# thicode configuration file\n")
	b.WriteString("# Generated by thicode - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidThemes lists the accepted ui.theme values.
var ValidThemes = []string{"dark", "light", "system"}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "server.base_url", Message: "must not be empty"})
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL %q, expected scheme://host[:port]", c.Server.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("unsupported scheme %q, must be http or https", u.Scheme),
		})
	}

	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Server.TimeoutSecs),
		})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "cannot be negative"})
	}

	if c.Chat.PollIntervalSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.poll_interval_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Chat.PollIntervalSecs),
		})
	}
	if c.Chat.PollTimeoutSecs < c.Chat.PollIntervalSecs {
		errs = append(errs, ValidationError{
			Field:   "chat.poll_timeout_secs",
			Message: fmt.Sprintf("must be at least poll_interval_secs (%d), got %d", c.Chat.PollIntervalSecs, c.Chat.PollTimeoutSecs),
		})
	}

	if !isValidTheme(c.UI.Theme) {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: %s", c.UI.Theme, strings.Join(ValidThemes, ", ")),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isValidTheme(theme string) bool {
	for _, t := range ValidThemes {
		if strings.EqualFold(theme, t) {
			return true
		}
	}
	return false
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = defaults.Chat.DefaultModel
	}
	if c.Chat.PollIntervalSecs == 0 {
		c.Chat.PollIntervalSecs = defaults.Chat.PollIntervalSecs
	}
	if c.Chat.PollTimeoutSecs == 0 {
		c.Chat.PollTimeoutSecs = defaults.Chat.PollTimeoutSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Migrate handles migration from old configuration formats to new ones.
func (c *Config) Migrate() error {
	// "auto" was the pre-1.0 name for following the terminal background
	if strings.EqualFold(c.UI.Theme, "auto") {
		c.UI.Theme = "system"
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	c.Server.BaseURL = strings.TrimSuffix(c.Server.BaseURL, "/")
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - THICODE_URL: overrides server.base_url
//   - THICODE_MODEL: overrides chat.default_model
//   - THICODE_THEME: overrides ui.theme
//   - THICODE_LOG_LEVEL: overrides log.level
//   - THICODE_NO_CACHE: set to "1" or "true" to disable the offline cache
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("THICODE_URL"); u != "" {
		c.Server.BaseURL = u
	}
	if model := os.Getenv("THICODE_MODEL"); model != "" {
		c.Chat.DefaultModel = model
	}
	if theme := os.Getenv("THICODE_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if level := os.Getenv("THICODE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if noCache := os.Getenv("THICODE_NO_CACHE"); noCache != "" {
		if noCache == "1" || strings.EqualFold(noCache, "true") {
			c.Storage.CacheEnabled = false
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.default_model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type, so CLI input can be passed through directly.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(part[1:])
		}
	}
	n := result.String()
	// BaseURL is spelled with an acronym
	if strings.EqualFold(n, "BaseUrl") {
		return "BaseURL"
	}
	return n
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean %q", s)
			}
			field.SetBool(b)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer %q", s)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", s)
			}
			field.SetFloat(f)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.base_url",
		"server.timeout_secs",
		"server.rate_limit",
		"server.rate_burst",
		"chat.default_model",
		"chat.poll_interval_secs",
		"chat.poll_timeout_secs",
		"ui.theme",
		"ui.markdown",
		"ui.word_wrap",
		"storage.cache_enabled",
		"storage.cache_path",
		"storage.session_path",
		"log.level",
		"log.path",
	}
}

// Clone creates a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
