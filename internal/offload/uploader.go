package offload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"vodmill/internal/config"
	"vodmill/internal/logging"
	"vodmill/internal/services"
)

// S3API is the object storage surface the uploader needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Result describes a completed offload.
type Result struct {
	RemoteURL string
	Uploaded  int
}

// Uploader pushes finished rendition directories to object storage and cleans
// up local artifacts afterwards. When offload is disabled it is a no-op that
// leaves local files as the artifact of record.
type Uploader struct {
	cfg    *config.Config
	client S3API
	logger *slog.Logger
}

// New constructs an Uploader, building the S3 client when offload is enabled.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Uploader, error) {
	uploader := &Uploader{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "offload"),
	}
	if !cfg.Offload.Enabled {
		return uploader, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Offload.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Offload.AccessKeyID, cfg.Offload.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "offload", "load aws config", "", err)
	}

	uploader.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Offload.Endpoint)
		o.UsePathStyle = true
	})
	return uploader, nil
}

// NewWithClient constructs an Uploader around an existing client. Intended for
// tests and alternative client wiring.
func NewWithClient(cfg *config.Config, client S3API, logger *slog.Logger) *Uploader {
	return &Uploader{
		cfg:    cfg,
		client: client,
		logger: logging.WithComponent(logger, "offload"),
	}
}

// Enabled reports whether remote offload is configured.
func (u *Uploader) Enabled() bool {
	return u.cfg.Offload.Enabled && u.client != nil
}

// Offload uploads every file in renditionDir under the job's key prefix, then
// removes the local rendition directory and the original source file. Any
// single upload failure fails the whole offload and preserves local files.
// When offload is disabled the call succeeds with an empty result.
func (u *Uploader) Offload(ctx context.Context, renditionDir, sourcePath, jobID string) (Result, error) {
	if !u.Enabled() {
		return Result{}, nil
	}

	entries, err := os.ReadDir(renditionDir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "offload", "read rendition directory", renditionDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	if len(files) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "offload", "collect files", "rendition directory is empty", nil)
	}

	keyPrefix := u.cfg.Offload.KeyPrefix + "/" + jobID

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(u.cfg.Offload.UploadConcurrency)
	for _, name := range files {
		name := name
		group.Go(func() error {
			return u.putFile(groupCtx, filepath.Join(renditionDir, name), keyPrefix+"/"+name)
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "offload", "upload renditions", "local files preserved", err)
	}

	result := Result{
		RemoteURL: u.playbackURL(jobID),
		Uploaded:  len(files),
	}

	u.logger.Info("offload complete",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("files", result.Uploaded),
		logging.String("remote_url", result.RemoteURL),
	)

	if err := os.RemoveAll(renditionDir); err != nil {
		u.logger.Warn("remove local renditions failed", logging.Error(err), logging.String("dir", renditionDir))
	}
	if sourcePath != "" {
		if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
			u.logger.Warn("remove source file failed", logging.Error(err), logging.String("path", sourcePath))
		}
	}

	return result, nil
}

func (u *Uploader) putFile(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Offload.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentTypeFor(path)),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) playbackURL(jobID string) string {
	return fmt.Sprintf("%s/%s:%s/%s/%s/master.m3u8",
		u.cfg.Offload.Endpoint,
		u.cfg.Offload.AccountID,
		u.cfg.Offload.Bucket,
		u.cfg.Offload.KeyPrefix,
		jobID,
	)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
