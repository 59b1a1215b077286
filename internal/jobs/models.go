package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcode job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusProcessing,
	StatusFinished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job represents a transcode job persisted in SQLite.
type Job struct {
	ID        string
	Title     string
	Filename  string
	Status    Status
	RemoteURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can no longer transition.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// IsProcessing returns true while the job's encode is in flight.
func (j Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}
