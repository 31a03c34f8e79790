package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LINKRANK_"

	systemConfigDir = "/etc/linkrank"
)

// nestedSections lists the sub-tables whose fields may be set from the
// environment, e.g. LINKRANK_SCORING_WEIGHTS_CENTER -> scoring.weights.center.
var nestedSections = map[string][]string{
	"scoring":   {"weights", "legacy", "thresholds"},
	"logging":   {"output", "sampling", "redaction"},
	"telemetry": {"sampling", "metrics", "shutdown"},
}

// Loader holds the merged file and environment configuration.
type Loader struct {
	k    *koanf.Koanf
	path string
}

// DefaultPath returns ~/.config/linkrank/config.yaml.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// NewLoader reads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LINKRANK_SERVER_PORT, LINKRANK_ENGINE_MODEL, etc.)
//  2. YAML config file (~/.config/linkrank/config.yaml)
//  3. Hardcoded defaults
//
// A missing file is not an error. An existing file must live under
// ~/.config/linkrank/ or /etc/linkrank/, have 0600 or 0400 permissions and
// be at most 1MB.
//
// Environment variables drop the LINKRANK_ prefix, split the section on the
// first underscore and keep the remaining underscores in the field name:
//
//	LINKRANK_SERVER_PORT           -> server.port
//	LINKRANK_RANKING_BATCH_TIMEOUT -> ranking.batch_timeout
//	LINKRANK_SCORING_WEIGHTS_AREA  -> scoring.weights.area
func NewLoader(configPath string) (*Loader, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	// Validate config path (even if file doesn't exist)
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &Loader{k: k, path: configPath}, nil
}

// Path returns the config file path, whether or not it exists.
func (l *Loader) Path() string {
	return l.path
}

// Config unmarshals, defaults and validates the core configuration.
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Unmarshal decodes one section into v. Fields absent from the file and
// environment keep the values already in v, so callers pass a populated
// default.
func (l *Loader) Unmarshal(section string, v interface{}) error {
	if !l.k.Exists(section) {
		return nil
	}
	if err := l.k.Unmarshal(section, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", section, err)
	}
	return nil
}

// LoadWithFile loads the core configuration from configPath (or the
// default path when empty) and the environment.
//
// Example:
//
//	cfg, err := config.LoadWithFile("")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadWithFile(configPath string) (*Config, error) {
	l, err := NewLoader(configPath)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// EnsureConfigDir creates ~/.config/linkrank with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := userConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "linkrank"), nil
}

// envKey maps LINKRANK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, field := parts[0], parts[1]
	for _, sub := range nestedSections[section] {
		if strings.HasPrefix(field, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(field, sub+"_")
		}
	}
	return section + "." + field
}

// readConfigFile validates and reads the file through one descriptor to
// avoid a TOCTOU race between the checks and the read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	// Paths that do not exist yet are checked as given.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	userDir, err := userConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{userDir, systemConfigDir} {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/linkrank/ or %s/", systemConfigDir)
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has a different permission model
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
