package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	StagingDir   string `toml:"staging_dir"`
	LogDir       string `toml:"log_dir"`
	ProfilesPath string `toml:"profiles_path"`
	APIBind      string `toml:"api_bind"`
}

// Fetch contains configuration for per-source feed resolution and download.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	RequestsPerSec int    `toml:"requests_per_sec"`
	UserAgent      string `toml:"user_agent"`
}

// Combine contains configuration for audio concatenation and encoding.
type Combine struct {
	SilenceMillis int    `toml:"silence_millis"`
	SampleRate    int    `toml:"sample_rate"`
	Channels      int    `toml:"channels"`
	Bitrate       string `toml:"bitrate"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Retention contains the two-rule cleanup policy for produced bulletins
// plus the stale-staging sweep interval.
type Retention struct {
	KeepCount           int `toml:"keep_count"`
	MaxAgeDays          int `toml:"max_age_days"`
	StagingMaxAgeHours  int `toml:"staging_max_age_hours"`
	PruneIntervalMinute int `toml:"prune_interval_minutes"`
}

// Email contains SMTP delivery settings. The password may also come from
// the NEWSREEL_SMTP_PASSWORD environment variable.
type Email struct {
	SMTPHost         string `toml:"smtp_host"`
	SMTPPort         int    `toml:"smtp_port"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	SenderName       string `toml:"sender_name"`
	DefaultRecipient string `toml:"default_recipient"`
	MaxAttachmentMiB int    `toml:"max_attachment_mib"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Schedule contains the optional cron trigger for unattended generation.
type Schedule struct {
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
	EmailTo  string `toml:"email_to"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Newsreel.
//
// Configuration sections by subsystem:
//   - Paths: output/staging/log directories, profile store, API bind address
//   - Fetch: feed resolution and download limits
//   - Combine: silence padding and encode parameters
//   - Retention: bulletin keep rules and staging sweeps
//   - Email: SMTP delivery of produced bulletins
//   - Schedule: cron trigger for unattended runs
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Fetch     Fetch     `toml:"fetch"`
	Combine   Combine   `toml:"combine"`
	Retention Retention `toml:"retention"`
	Email     Email     `toml:"email"`
	Schedule  Schedule  `toml:"schedule"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/newsreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("newsreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.ProfilesPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profile directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for combining bulletins.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Combine.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for segment inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Combine.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// SMTPPassword resolves the delivery credential without ever logging it.
func (c *Config) SMTPPassword() string {
	if value, ok := os.LookupEnv("NEWSREEL_SMTP_PASSWORD"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return c.Email.Password
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
