package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the YAML config file inside the config home
const FileName = "config.yaml"

// Config represents the application configuration
type Config struct {
	// Home is the config root every other default derives from
	Home string `yaml:"-"`

	DBPath        string `yaml:"db_path"`
	DefaultSource string `yaml:"default_source"`
	LogLevel      string `yaml:"log_level"`
	Output        string `yaml:"output"`
	Color         string `yaml:"color"` // auto, always, never
	RunCommands   bool   `yaml:"run_commands"`
}

// ResolveHome picks the config root: the --home flag, then STENCIL_HOME,
// then ~/.config/stencil.
func ResolveHome(flag string) (string, error) {
	home := flag
	if home == "" {
		home = os.Getenv("STENCIL_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		home = filepath.Join(userHome, ".config", "stencil")
	}
	return filepath.Abs(home)
}

// Load loads configuration rooted at home with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. <home>/config.yaml (YAML)
// 4. Defaults
func Load(home string) (*Config, error) {
	cfg := &Config{
		Home:        home,
		LogLevel:    "warn",
		Output:      "table",
		Color:       "auto",
		RunCommands: true,
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	if err := loadYAMLConfig(cfg, filepath.Join(home, FileName)); err != nil {
		return nil, err
	}

	if dbPath := getEnvOrFile("STENCIL_DB_PATH", "STENCIL_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if src := os.Getenv("STENCIL_DEFAULT_SOURCE"); src != "" {
		cfg.DefaultSource = src
	}
	if logLevel := os.Getenv("STENCIL_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if output := os.Getenv("STENCIL_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if color := os.Getenv("STENCIL_COLOR"); color != "" {
		cfg.Color = color
	}
	if v := os.Getenv("STENCIL_RUN_COMMANDS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("STENCIL_RUN_COMMANDS: %w", err)
		}
		cfg.RunCommands = b
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(home, "registry.db")
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.Color {
	case "auto", "always", "never":
	default:
		return nil, fmt.Errorf("invalid color setting %q: must be auto, always or never", cfg.Color)
	}

	return cfg, nil
}

// loadYAMLConfig merges the YAML config file into cfg. A missing file is
// not an error; a malformed one is.
func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ParseLogLevel maps a config log level to slog
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
