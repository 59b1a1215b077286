package daemon

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vodmill/internal/config"
	"vodmill/internal/fileutil"
	"vodmill/internal/logging"
	"vodmill/internal/workflow"
)

// stageUpload writes the uploaded file into the upload directory under a
// collision-free name and assembles the orchestrator request from the form
// fields.
func stageUpload(cfg *config.Config, r *http.Request, file multipart.File, header *multipart.FileHeader) (workflow.Request, string, error) {
	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "upload"
	}

	staged := uuid.NewString() + filepath.Ext(filename)
	sourcePath := filepath.Join(cfg.Paths.UploadDir, staged)
	if _, err := fileutil.WriteStream(sourcePath, file); err != nil {
		return workflow.Request{}, "", fmt.Errorf("stage upload: %w", err)
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = deriveTitle(filename)
	}

	req := workflow.Request{
		Title:      title,
		Filename:   filename,
		SourcePath: sourcePath,
		Qualities:  parseQualities(r.Form["qualities"]),
	}
	return req, sourcePath, nil
}

// parseQualities flattens repeated and comma-separated quality values.
func parseQualities(values []string) []string {
	var qualities []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				qualities = append(qualities, trimmed)
			}
		}
	}
	return qualities
}

// deriveTitle produces a display title from an upload filename when the
// client did not supply one.
func deriveTitle(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		title = "Untitled Upload"
	}
	return cases.Title(language.Und).String(title)
}

// removeArtifacts clears a deleted job's rendition directory and, when known,
// its staged source file. Failures are logged and otherwise ignored so the
// delete itself still succeeds.
func removeArtifacts(d *Daemon, manager *workflow.Manager, jobID string, logger *slog.Logger) {
	outputDir := manager.OutputDir(jobID)
	if err := os.RemoveAll(outputDir); err != nil {
		logger.Warn("failed to remove rendition directory",
			logging.String(logging.FieldJobID, jobID),
			logging.String("path", outputDir),
			logging.Error(err))
	}
	if sourcePath, ok := d.takeSource(jobID); ok {
		if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove source file",
				logging.String(logging.FieldJobID, jobID),
				logging.String("path", sourcePath),
				logging.Error(err))
		}
	}
}
