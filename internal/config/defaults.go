package config

const (
	defaultUploadDir         = "~/.local/share/vodmill/uploads"
	defaultOutputDir         = "~/.local/share/vodmill/videos"
	defaultLogDir            = "~/.local/share/vodmill/logs"
	defaultAPIBind           = "127.0.0.1:7489"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFmpegPreset      = "veryfast"
	defaultFFmpegCRF         = 22
	defaultSegmentSeconds    = 6
	defaultOffloadKeyPrefix  = "videos"
	defaultUploadConcurrency = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			Preset:         defaultFFmpegPreset,
			CRF:            defaultFFmpegCRF,
			SegmentSeconds: defaultSegmentSeconds,
		},
		Offload: Offload{
			KeyPrefix:         defaultOffloadKeyPrefix,
			UploadConcurrency: defaultUploadConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
