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
	c.normalizeFFmpeg()
	c.normalizeOffload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.Preset = strings.TrimSpace(c.FFmpeg.Preset)
	if c.FFmpeg.Preset == "" {
		c.FFmpeg.Preset = defaultFFmpegPreset
	}
	if c.FFmpeg.CRF <= 0 {
		c.FFmpeg.CRF = defaultFFmpegCRF
	}
	if c.FFmpeg.SegmentSeconds <= 0 {
		c.FFmpeg.SegmentSeconds = defaultSegmentSeconds
	}
}

func (c *Config) normalizeOffload() {
	if c.Offload.AccessKeyID == "" {
		if value, ok := os.LookupEnv("VODMILL_S3_ACCESS_KEY_ID"); ok {
			c.Offload.AccessKeyID = strings.TrimSpace(value)
		}
	}
	if c.Offload.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("VODMILL_S3_SECRET_ACCESS_KEY"); ok {
			c.Offload.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	c.Offload.Endpoint = strings.TrimRight(strings.TrimSpace(c.Offload.Endpoint), "/")
	c.Offload.KeyPrefix = strings.Trim(strings.TrimSpace(c.Offload.KeyPrefix), "/")
	if c.Offload.KeyPrefix == "" {
		c.Offload.KeyPrefix = defaultOffloadKeyPrefix
	}
	if c.Offload.UploadConcurrency <= 0 {
		c.Offload.UploadConcurrency = defaultUploadConcurrency
	}
	if c.Offload.Region == "" {
		c.Offload.Region = "auto"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
