package daemon_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodmill/internal/config"
	"vodmill/internal/daemon"
	"vodmill/internal/encoding"
	"vodmill/internal/jobs"
	"vodmill/internal/logging"
	"vodmill/internal/notify"
	"vodmill/internal/offload"
	"vodmill/internal/testsupport"
	"vodmill/internal/workflow"
)

// stubDriver writes a minimal rendition tree instead of invoking ffmpeg.
type stubDriver struct {
	fail bool
}

func (d *stubDriver) Encode(ctx context.Context, sourcePath, outputDir string, plan encoding.Plan) error {
	if d.fail {
		return fmt.Errorf("encode blew up")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "master.m3u8"), []byte("#EXTM3U\n"), 0o644)
}

type testHarness struct {
	cfg     *config.Config
	store   *jobs.Store
	manager *workflow.Manager
	daemon  *daemon.Daemon
	baseURL string
}

func startDaemon(t *testing.T, driver *stubDriver) *testHarness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := notify.NewHub()
	uploader := offload.NewWithClient(cfg, nil, logger)
	manager := workflow.NewManager(cfg, store, driver, uploader, hub, logger)

	d, err := daemon.New(cfg, store, manager, hub, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})

	return &testHarness{
		cfg:     cfg,
		store:   store,
		manager: manager,
		daemon:  d,
		baseURL: "http://" + d.Addr(),
	}
}

func uploadVideo(t *testing.T, h *testHarness, filename, title string, qualities string) map[string]any {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("not really a video")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if qualities != "" {
		if err := writer.WriteField("qualities", qualities); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post(h.baseURL+"/api/videos", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, data)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return payload
}

func awaitTerminal(t *testing.T, h *testHarness, jobID string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.store.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return nil
}

func TestDaemonStartStop(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	status := h.daemon.Status(context.Background())
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.JobDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %#v", status)
	}

	if err := h.daemon.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(context.Background()).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonStartReconcilesOrphanedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	orphan := testsupport.NewJob(t, store, "Orphan", "orphan.mp4")

	logger := logging.NewNop()
	hub := notify.NewHub()
	manager := workflow.NewManager(cfg, store, &stubDriver{}, nil, hub, logger)
	d, err := daemon.New(cfg, store, manager, hub, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	job, err := store.GetByID(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Fatalf("orphaned job status = %s, want failed", job.Status)
	}
}

func TestUploadRunsJobToFinished(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	payload := uploadVideo(t, h, "beach_day.mp4", "", "360p,720p")
	if payload["status"] != string(jobs.StatusProcessing) {
		t.Fatalf("upload response status = %v, want processing", payload["status"])
	}
	if payload["title"] != "Beach Day" {
		t.Fatalf("derived title = %v, want Beach Day", payload["title"])
	}

	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatalf("upload response missing id: %#v", payload)
	}

	job := awaitTerminal(t, h, id)
	if job.Status != jobs.StatusFinished {
		t.Fatalf("job status = %s, want finished", job.Status)
	}

	master := filepath.Join(h.cfg.Paths.OutputDir, id, "master.m3u8")
	if _, err := os.Stat(master); err != nil {
		t.Fatalf("expected master playlist at %s: %v", master, err)
	}

	resp, err := http.Get(h.baseURL + "/api/videos/" + id)
	if err != nil {
		t.Fatalf("get video failed: %v", err)
	}
	defer resp.Body.Close()
	var fetched map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched["streamUrl"] != "/videos/"+id+"/master.m3u8" {
		t.Fatalf("streamUrl = %v", fetched["streamUrl"])
	}
}

func TestUploadEncodeFailureMarksJobFailed(t *testing.T) {
	h := startDaemon(t, &stubDriver{fail: true})

	payload := uploadVideo(t, h, "corrupt.mp4", "Corrupt", "")
	id, _ := payload["id"].(string)

	job := awaitTerminal(t, h, id)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("job status = %s, want failed", job.Status)
	}
}

func TestUploadWithoutFileRejected(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("title", "No File"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post(h.baseURL+"/api/videos", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListVideosPagesAndFilters(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	for _, name := range []string{"alpha.mp4", "beta.mp4", "gamma.mp4"} {
		payload := uploadVideo(t, h, name, "", "")
		id, _ := payload["id"].(string)
		awaitTerminal(t, h, id)
	}

	resp, err := http.Get(h.baseURL + "/api/videos?page=1&pageSize=2")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()
	var listing struct {
		Items    []map[string]any `json:"items"`
		Total    int              `json:"total"`
		PageSize int              `json:"pageSize"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if listing.Total != 3 || len(listing.Items) != 2 {
		t.Fatalf("total = %d items = %d, want 3 and 2", listing.Total, len(listing.Items))
	}

	filtered, err := http.Get(h.baseURL + "/api/videos?title=beta")
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	defer filtered.Body.Close()
	if err := json.NewDecoder(filtered.Body).Decode(&listing); err != nil {
		t.Fatalf("decode filtered response: %v", err)
	}
	if listing.Total != 1 || len(listing.Items) != 1 {
		t.Fatalf("filtered total = %d items = %d, want 1 and 1", listing.Total, len(listing.Items))
	}
}

func TestGetUnknownVideoReturns404(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	resp, err := http.Get(h.baseURL + "/api/videos/no-such-id")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteRemovesJobAndArtifacts(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	payload := uploadVideo(t, h, "doomed.mp4", "Doomed", "")
	id, _ := payload["id"].(string)
	awaitTerminal(t, h, id)

	outputDir := filepath.Join(h.cfg.Paths.OutputDir, id)
	if _, err := os.Stat(outputDir); err != nil {
		t.Fatalf("expected rendition dir before delete: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, h.baseURL+"/api/videos/"+id, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	if _, err := os.Stat(outputDir); !os.IsNotExist(err) {
		t.Fatalf("expected rendition dir removed, stat err = %v", err)
	}
	job, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected job record removed, got %#v", job)
	}

	entries, err := os.ReadDir(h.cfg.Paths.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir uploads: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staged source removed, found %d entries", len(entries))
	}
}

func TestDeleteUnknownVideoReturns404(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	req, err := http.NewRequest(http.MethodDelete, h.baseURL+"/api/videos/no-such-id", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusEndpointReportsJobCounts(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	payload := uploadVideo(t, h, "clip.mp4", "Clip", "")
	id, _ := payload["id"].(string)
	awaitTerminal(t, h, id)

	resp, err := http.Get(h.baseURL + "/api/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	var status struct {
		Running bool           `json:"running"`
		Jobs    map[string]int `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.Jobs["finished"] != 1 {
		t.Fatalf("finished count = %d, want 1", status.Jobs["finished"])
	}
}

func TestEventsStreamDeliversStatusChanges(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	// The subscription exists once the response headers arrive, so an upload
	// after this point cannot race the subscribe.
	payload := uploadVideo(t, h, "evented.mp4", "Evented", "")
	id, _ := payload["id"].(string)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") && strings.Contains(line, id) && strings.Contains(line, "finished") {
			return
		}
	}
	t.Fatalf("never observed status event for job %s: %v", id, scanner.Err())
}

func TestStaticRenditionServing(t *testing.T) {
	h := startDaemon(t, &stubDriver{})

	payload := uploadVideo(t, h, "served.mp4", "Served", "")
	id, _ := payload["id"].(string)
	awaitTerminal(t, h, id)

	resp, err := http.Get(h.baseURL + "/videos/" + id + "/master.m3u8")
	if err != nil {
		t.Fatalf("playlist request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("playlist status = %d, want 200", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read playlist: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("#EXTM3U")) {
		t.Fatalf("unexpected playlist body: %q", data)
	}
}
