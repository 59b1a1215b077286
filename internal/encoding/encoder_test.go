package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vodmill/internal/encoding"
	"vodmill/internal/quality"
	"vodmill/internal/services"
	"vodmill/internal/testsupport"
)

type stubClient struct {
	err  error
	args []string
}

func (s *stubClient) Run(_ context.Context, args []string) error {
	s.args = args
	return s.err
}

func TestEncodeCreatesOutputDirAndRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &stubClient{}
	driver := encoding.NewDriver(cfg, client, nil)

	outputDir := filepath.Join(cfg.Paths.OutputDir, "job-1")
	plan := encoding.BuildPlan(quality.Catalog(), []string{"360p"})
	if err := driver.Encode(context.Background(), "/in/video.mp4", outputDir, plan); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("output directory not created: %v", err)
	}
	if len(client.args) == 0 || client.args[0] != "-i" {
		t.Fatalf("unexpected args passed to client: %v", client.args)
	}
}

func TestEncodeClassifiesToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &stubClient{err: errors.New("exit status 1")}
	driver := encoding.NewDriver(cfg, client, nil)

	plan := encoding.BuildPlan(quality.Catalog(), nil)
	err := driver.Encode(context.Background(), "/in/video.mp4", filepath.Join(cfg.Paths.OutputDir, "job-2"), plan)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestEncodeRejectsEmptyPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	driver := encoding.NewDriver(cfg, &stubClient{}, nil)

	err := driver.Encode(context.Background(), "/in/video.mp4", cfg.Paths.OutputDir, encoding.Plan{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
