package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeCombine()
	c.normalizeRetention()
	c.normalizeEmail()
	c.normalizeSchedule()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProfilesPath) == "" {
		c.Paths.ProfilesPath = defaultProfilesPath
	}
	if c.Paths.ProfilesPath, err = expandPath(c.Paths.ProfilesPath); err != nil {
		return fmt.Errorf("paths.profiles_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeFetch() {
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeout
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = defaultFetchConcurrency
	}
	if c.Fetch.RequestsPerSec <= 0 {
		c.Fetch.RequestsPerSec = defaultFetchRequestsPerS
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeCombine() {
	if c.Combine.SilenceMillis < 0 {
		c.Combine.SilenceMillis = defaultSilenceMillis
	}
	if c.Combine.SampleRate <= 0 {
		c.Combine.SampleRate = defaultSampleRate
	}
	if c.Combine.Channels <= 0 {
		c.Combine.Channels = defaultChannels
	}
	c.Combine.Bitrate = strings.TrimSpace(c.Combine.Bitrate)
	if c.Combine.Bitrate == "" {
		c.Combine.Bitrate = defaultBitrate
	}
	c.Combine.FFmpegBinary = strings.TrimSpace(c.Combine.FFmpegBinary)
	c.Combine.FFprobeBinary = strings.TrimSpace(c.Combine.FFprobeBinary)
}

func (c *Config) normalizeRetention() {
	if c.Retention.KeepCount < 0 {
		c.Retention.KeepCount = 0
	}
	if c.Retention.MaxAgeDays < 0 {
		c.Retention.MaxAgeDays = 0
	}
	if c.Retention.StagingMaxAgeHours <= 0 {
		c.Retention.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
	if c.Retention.PruneIntervalMinute <= 0 {
		c.Retention.PruneIntervalMinute = defaultPruneInterval
	}
}

func (c *Config) normalizeEmail() {
	c.Email.SMTPHost = strings.TrimSpace(c.Email.SMTPHost)
	c.Email.Username = strings.TrimSpace(c.Email.Username)
	c.Email.DefaultRecipient = strings.TrimSpace(c.Email.DefaultRecipient)
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	c.Email.SenderName = strings.TrimSpace(c.Email.SenderName)
	if c.Email.SenderName == "" {
		c.Email.SenderName = defaultSenderName
	}
	if c.Email.MaxAttachmentMiB <= 0 {
		c.Email.MaxAttachmentMiB = defaultMaxAttachmentMiB
	}
	if c.Email.TimeoutSeconds <= 0 {
		c.Email.TimeoutSeconds = defaultEmailTimeout
	}
	if c.Email.Password == "" {
		if value, ok := os.LookupEnv("NEWSREEL_SMTP_PASSWORD"); ok {
			c.Email.Password = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.Cron = strings.TrimSpace(c.Schedule.Cron)
	c.Schedule.Timezone = strings.TrimSpace(c.Schedule.Timezone)
	c.Schedule.EmailTo = strings.TrimSpace(c.Schedule.EmailTo)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
