package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	// Direction accepts inbound/outbound, or the pseudo-direction "missed"
	// which the activity view exposes as a direction choice.
	Direction string
	Status    Status

	// Number matches as a substring of either leg.
	Number string
	// Search is the free-text box: matched against both numbers.
	Search string

	UserID string
	TeamID string

	From time.Time
	To   time.Time

	Offset int
	Limit  int
}

// SummaryFilter scopes the analytics aggregate.
type SummaryFilter struct {
	UserID string // empty = all users (admin view)
	TeamID string
	From   time.Time
	To     time.Time
}

// Summary is the aggregate behind the analytics screens.
type Summary struct {
	TotalCalls             int `json:"total_calls"`
	CompletedCalls         int `json:"completed_calls"`
	MissedCalls            int `json:"missed_calls"`
	InboundCalls           int `json:"inbound_calls"`
	OutboundCalls          int `json:"outbound_calls"`
	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
	RecordedCalls          int `json:"recorded_calls"`
}

// PropagationReport is the outcome of a recording-URL fan-out to child
// legs. A failed child never aborts its siblings; failures are collected
// here for the caller to log.
type PropagationReport struct {
	Updated []string
	Failed  []PropagationFailure
}

type PropagationFailure struct {
	CallID string
	Err    error
}

// Store is the sole owner of CallRecord rows. Upsert keyed by call id is
// the only write primitive; implementations apply the Merge policy
// atomically so concurrent webhook deliveries cannot lose attribution.
type Store interface {
	// Upsert merges rec into any existing row with the same id and writes
	// the result. It never deletes fields the merge policy protects.
	Upsert(ctx context.Context, rec CallRecord) error

	Get(ctx context.Context, id string) (CallRecord, error)

	// List returns records newest-first by start time.
	List(ctx context.Context, f ListFilter) ([]CallRecord, error)

	// PropagateRecording copies recordingURL onto every record whose
	// parent_call_id equals parentID. Per-child failures are reported,
	// not returned as an error.
	PropagateRecording(ctx context.Context, parentID, recordingURL string) (PropagationReport, error)

	Summary(ctx context.Context, f SummaryFilter) (Summary, error)
}

const defaultListLimit = 50

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return defaultListLimit
	}
	return f.Limit
}
