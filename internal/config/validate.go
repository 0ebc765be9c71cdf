package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCombine(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == c.Paths.StagingDir {
		return errors.New("paths.output_dir and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateCombine() error {
	if c.Combine.SampleRate < 8000 || c.Combine.SampleRate > 192000 {
		return fmt.Errorf("combine.sample_rate %d out of range", c.Combine.SampleRate)
	}
	if c.Combine.Channels != 1 && c.Combine.Channels != 2 {
		return errors.New("combine.channels must be 1 or 2")
	}
	return nil
}

func (c *Config) validateEmail() error {
	// Delivery stays optional; only complain about half-configured setups.
	if c.Email.SMTPHost == "" {
		return nil
	}
	if c.Email.Username == "" {
		return errors.New("email.username must be set when email.smtp_host is configured")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.Cron == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}
