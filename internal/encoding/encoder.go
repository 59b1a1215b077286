package encoding

import (
	"context"
	"os"
	"strings"

	"log/slog"

	"vodmill/internal/config"
	"vodmill/internal/logging"
	"vodmill/internal/services"
	"vodmill/internal/services/ffmpeg"
)

// Driver runs a planned encode against the external transcoder. It owns the
// output directory creation and error classification; partial output files
// are left in place on failure for the caller to clean up.
type Driver struct {
	cfg    *config.Config
	client ffmpeg.Client
	logger *slog.Logger
}

// NewDriver constructs a Driver. A nil client defaults to the ffmpeg CLI
// configured in cfg.
func NewDriver(cfg *config.Config, client ffmpeg.Client, logger *slog.Logger) *Driver {
	if client == nil {
		client = ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpeg.Binary))
	}
	return &Driver{
		cfg:    cfg,
		client: client,
		logger: logging.WithComponent(logger, "encoder"),
	}
}

// Encode invokes the transcoder once for the whole plan. Exactly one terminal
// outcome is returned: nil on success or an error carrying the cause.
func (d *Driver) Encode(ctx context.Context, sourcePath, outputDir string, plan Plan) error {
	if strings.TrimSpace(sourcePath) == "" {
		return services.Wrap(services.ErrValidation, "encoder", "encode", "source path required", nil)
	}
	if len(plan.Renditions) == 0 {
		return services.Wrap(services.ErrValidation, "encoder", "encode", "encode plan is empty", nil)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "encoder", "create output directory", outputDir, err)
	}

	args := plan.Args(sourcePath, outputDir, ArgOptions{
		Preset:         d.cfg.FFmpeg.Preset,
		CRF:            d.cfg.FFmpeg.CRF,
		SegmentSeconds: d.cfg.FFmpeg.SegmentSeconds,
	})

	d.logger.Info("launching transcode",
		logging.String("input", sourcePath),
		logging.String("output_dir", outputDir),
		logging.String("renditions", strings.Join(plan.Names(), ",")),
		logging.String("command", d.commandLine(args)),
	)

	if err := d.client.Run(ctx, args); err != nil {
		return services.Wrap(services.ErrExternalTool, "encoder", "run ffmpeg", "transcode failed", err)
	}

	d.logger.Info("transcode finished",
		logging.String("output_dir", outputDir),
		logging.Int("rendition_count", len(plan.Renditions)),
	)
	return nil
}

func (d *Driver) commandLine(args []string) string {
	if cli, ok := d.client.(*ffmpeg.CLI); ok {
		return cli.Command(args)
	}
	return strings.Join(args, " ")
}
