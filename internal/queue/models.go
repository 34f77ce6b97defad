package queue

import (
	"strings"
	"time"

	"scenematch/internal/services"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatching  Status = "matching"
	StatusMatched   Status = "matched"
	StatusReview    Status = "review"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusMatching,
	StatusMatched,
	StatusReview,
	StatusRejected,
	StatusFailed,
	StatusCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Item represents a queued file persisted in SQLite. ArtifactJSON carries the
// serialized match artifact for the file; DecisionReason mirrors the machine
// readable reason code recorded by the decision engine.
type Item struct {
	ID             int64
	SourcePath     string
	Status         Status
	Decision       string
	DecisionReason string
	ChosenGUID     string
	FinalPath      string
	ArtifactJSON   string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
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

// IsProcessing reports whether the item is mid-flight through the pipeline.
func (i Item) IsProcessing() bool {
	return i.Status == StatusMatching
}

// IsTerminal reports whether the status will not change without user action.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// FailureStatus maps a processing error to the status to persist after a
// file fails: conditions needing human attention park in review, everything
// else is failed.
func FailureStatus(err error) Status {
	if services.NeedsReview(err) {
		return StatusReview
	}
	return StatusFailed
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Matching  int
	Review    int
	Failed    int
	Completed int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
