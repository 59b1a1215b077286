package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, title, filename, status, remote_url, created_at, updated_at"

// Create inserts a new job in processing state and assigns its identifier.
func (s *Store) Create(ctx context.Context, title, filename string) (*Job, error) {
	title = strings.TrimSpace(title)
	filename = strings.TrimSpace(filename)
	if title == "" {
		return nil, errors.New("title required")
	}
	if filename == "" {
		return nil, errors.New("filename required")
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, title, filename, status, remote_url, created_at, updated_at)
         VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		id,
		title,
		filename,
		StatusProcessing,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListOptions filters and pages the job listing.
type ListOptions struct {
	Page          int
	PageSize      int
	TitleFilter   string
	CaseSensitive bool
}

// List returns jobs ordered newest-creation-first plus the total count
// matching the filter.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Job, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}

	where := ""
	args := []any{}
	if filter := strings.TrimSpace(opts.TitleFilter); filter != "" {
		if opts.CaseSensitive {
			where = " WHERE instr(title, ?) > 0"
		} else {
			where = " WHERE instr(lower(title), lower(?)) > 0"
		}
		args = append(args, filter)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		items = append(items, *job)
	}
	return items, total, rows.Err()
}

// UpdateStatus transitions a job to the given status, optionally recording the
// remote playback URL. Transitions are monotonic: a finished or failed job
// rejects further updates with ErrFinalized. The guard and the write happen in
// one statement so concurrent updates to the same id cannot interleave.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, remoteURL string) (*Job, error) {
	if _, ok := statusSet[status]; !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, remote_url = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		status,
		nullableString(remoteURL),
		timestamp,
		id,
		StatusFinished,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrFinalized, id, existing.Status)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a job record. Deletion is permitted regardless of status.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the number of jobs in each status. Statuses with no jobs are
// present with a zero count.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		counts[status] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ReconcileStuck transitions every job still marked processing to failed and
// returns the number affected. It exists to clean up jobs orphaned by a
// previous process instance and must run before this process accepts uploads.
func (s *Store) ReconcileStuck(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusFailed,
		timestamp,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		remoteURL sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&job.ID, &job.Title, &job.Filename, &job.Status, &remoteURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.RemoteURL = remoteURL.String
	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
