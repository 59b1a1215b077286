package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"vodmill/internal/jobs"
	"vodmill/internal/testsupport"
)

func TestCreateAssignsIDAndProcessingStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Create(ctx, "Holiday Reel", "holiday.mp4")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusProcessing {
		t.Fatalf("new job status = %s, want processing", job.Status)
	}
	if job.RemoteURL != "" {
		t.Fatalf("new job should have no remote URL, got %q", job.RemoteURL)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Holiday Reel" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestCreateRequiresTitleAndFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Create(ctx, "", "file.mp4"); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := store.Create(ctx, "Title", " "); err == nil {
		t.Fatal("expected error for empty filename")
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %#v", job)
	}
}

func TestUpdateStatusIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Clip", "clip.mp4")

	updated, err := store.UpdateStatus(ctx, job.ID, jobs.StatusFinished, "https://cdn.example.com/master.m3u8")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != jobs.StatusFinished || updated.RemoteURL != "https://cdn.example.com/master.m3u8" {
		t.Fatalf("unexpected job after update: %#v", updated)
	}

	if _, err := store.UpdateStatus(ctx, job.ID, jobs.StatusFailed, ""); !errors.Is(err, jobs.ErrFinalized) {
		t.Fatalf("expected ErrFinalized for terminal job, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, job.ID, jobs.StatusProcessing, ""); !errors.Is(err, jobs.ErrFinalized) {
		t.Fatalf("terminal status must never revert, got %v", err)
	}

	// Deletion remains allowed regardless of status.
	if err := store.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.UpdateStatus(context.Background(), "missing", jobs.StatusFailed, "")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "Clip", "clip.mp4")
	if _, err := store.UpdateStatus(context.Background(), job.ID, jobs.Status("archived"), ""); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDeleteMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := store.Delete(context.Background(), "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Clip", "clip.mp4")
	if err := store.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched != nil {
		t.Fatalf("expected job to be gone, got %#v", fetched)
	}
}

func TestReconcileStuckOnlyTouchesProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var stuck []string
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, fmt.Sprintf("Stuck %d", i), fmt.Sprintf("stuck%d.mp4", i))
		stuck = append(stuck, job.ID)
	}
	finished := testsupport.NewJob(t, store, "Done", "done.mp4")
	if _, err := store.UpdateStatus(ctx, finished.ID, jobs.StatusFinished, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	count, err := store.ReconcileStuck(ctx)
	if err != nil {
		t.Fatalf("ReconcileStuck failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 reconciled jobs, got %d", count)
	}

	for _, id := range stuck {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != jobs.StatusFailed {
			t.Fatalf("job %s status = %s, want failed", id, job.Status)
		}
	}

	untouched, err := store.GetByID(ctx, finished.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != jobs.StatusFinished {
		t.Fatalf("finished job must be untouched, got %s", untouched.Status)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	empty, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for status, count := range empty {
		if count != 0 {
			t.Fatalf("empty store reported %d %s jobs", count, status)
		}
	}

	for i := 0; i < 2; i++ {
		testsupport.NewJob(t, store, fmt.Sprintf("Active %d", i), fmt.Sprintf("active%d.mp4", i))
	}
	done := testsupport.NewJob(t, store, "Done", "done.mp4")
	if _, err := store.UpdateStatus(ctx, done.ID, jobs.StatusFinished, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	counts, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if counts[jobs.StatusProcessing] != 2 || counts[jobs.StatusFinished] != 1 || counts[jobs.StatusFailed] != 0 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestListOrdersNewestFirstAndPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		testsupport.NewJob(t, store, fmt.Sprintf("Video %d", i), fmt.Sprintf("v%d.mp4", i))
	}

	items, total, err := store.List(ctx, jobs.ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page, got %d", len(items))
	}
	if items[0].Title != "Video 4" {
		t.Fatalf("expected newest first, got %s", items[0].Title)
	}

	last, _, err := store.List(ctx, jobs.ListOptions{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(last) != 1 || last[0].Title != "Video 0" {
		t.Fatalf("unexpected final page: %#v", last)
	}
}

func TestListTitleFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "Summer Trip", "a.mp4")
	testsupport.NewJob(t, store, "Winter Trip", "b.mp4")
	testsupport.NewJob(t, store, "Conference Talk", "c.mp4")

	items, total, err := store.List(ctx, jobs.ListOptions{TitleFilter: "trip"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("case-insensitive filter should match 2, got total=%d len=%d", total, len(items))
	}

	_, total, err = store.List(ctx, jobs.ListOptions{TitleFilter: "trip", CaseSensitive: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("case-sensitive filter should match 0, got %d", total)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus(" Finished "); !ok || status != jobs.StatusFinished {
		t.Fatalf("ParseStatus failed: %v %v", status, ok)
	}
	if _, ok := jobs.ParseStatus("queued"); ok {
		t.Fatal("unknown status must not parse")
	}
}
