package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateOffload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.UploadDir == c.Paths.OutputDir {
		return errors.New("paths.upload_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.SegmentSeconds <= 0 {
		return errors.New("ffmpeg.segment_seconds must be positive")
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		return errors.New("ffmpeg.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateOffload() error {
	if !c.Offload.Enabled {
		return nil
	}
	required := []struct {
		name  string
		value string
	}{
		{"offload.endpoint", c.Offload.Endpoint},
		{"offload.account_id", c.Offload.AccountID},
		{"offload.bucket", c.Offload.Bucket},
		{"offload.access_key_id", c.Offload.AccessKeyID},
		{"offload.secret_access_key", c.Offload.SecretAccessKey},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required when offload is enabled", field.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
