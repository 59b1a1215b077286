package testsupport

import (
	"path/filepath"
	"testing"

	"vodmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.OutputDir = filepath.Join(base, "videos")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithOffload enables remote offload with test endpoint settings.
func WithOffload(endpoint, accountID, bucket string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Offload.Enabled = true
		cfg.Offload.Endpoint = endpoint
		cfg.Offload.AccountID = accountID
		cfg.Offload.Bucket = bucket
		cfg.Offload.AccessKeyID = "test"
		cfg.Offload.SecretAccessKey = "test"
	}
}

// WithFFmpegBinary overrides the transcoder binary on the test config.
func WithFFmpegBinary(binary string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FFmpeg.Binary = binary
	}
}
