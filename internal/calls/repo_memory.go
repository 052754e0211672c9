package calls

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development. It
// applies the same Merge policy as the Postgres store, under a mutex.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]CallRecord

	// FailPropagation lists child call ids whose recording propagation
	// should fail, for exercising partial fan-out behavior in tests.
	FailPropagation map[string]error

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: map[string]CallRecord{},
		now:  time.Now,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(rec)
}

func (s *MemoryStore) upsertLocked(rec CallRecord) error {
	existing := s.rows[rec.ID]
	merged, changed := Merge(existing, rec)
	if !changed && existing.ID != "" {
		return nil
	}
	now := s.now()
	if existing.ID == "" {
		merged.CreatedAt = now
	} else {
		merged.CreatedAt = existing.CreatedAt
	}
	merged.UpdatedAt = now
	s.rows[rec.ID] = merged
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CallRecord, 0)
	for _, rec := range s.rows {
		if matchesFilter(rec, f) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return startedOrCreated(out[i]).After(startedOrCreated(out[j]))
	})

	if f.Offset >= len(out) {
		return []CallRecord{}, nil
	}
	out = out[f.Offset:]
	if lim := f.limit(); len(out) > lim {
		out = out[:lim]
	}
	return out, nil
}

func (s *MemoryStore) PropagateRecording(ctx context.Context, parentID, recordingURL string) (PropagationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report PropagationReport
	for id, rec := range s.rows {
		if rec.ParentCallID != parentID {
			continue
		}
		if err, ok := s.FailPropagation[id]; ok && err != nil {
			report.Failed = append(report.Failed, PropagationFailure{CallID: id, Err: err})
			continue
		}
		rec.RecordingURL = recordingURL
		rec.UpdatedAt = s.now()
		s.rows[id] = rec
		report.Updated = append(report.Updated, id)
	}
	return report, nil
}

func (s *MemoryStore) Summary(ctx context.Context, f SummaryFilter) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary
	for _, rec := range s.rows {
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.TeamID != "" && rec.TeamID != f.TeamID {
			continue
		}
		if !inRange(startedOrCreated(rec), f.From, f.To) {
			continue
		}
		sum.TotalCalls++
		switch rec.Status {
		case StatusCompleted:
			sum.CompletedCalls++
		case StatusMissed:
			sum.MissedCalls++
		}
		switch rec.Direction {
		case DirectionInbound:
			sum.InboundCalls++
		case DirectionOutbound:
			sum.OutboundCalls++
		}
		if rec.DurationSeconds != nil {
			sum.TotalDurationSeconds += *rec.DurationSeconds
		}
		if rec.RecordingURL != "" && rec.RecordingURL != ArtifactPending {
			sum.RecordedCalls++
		}
	}
	if sum.TotalCalls > 0 {
		sum.AverageDurationSeconds = sum.TotalDurationSeconds / sum.TotalCalls
	}
	return sum, nil
}

func matchesFilter(rec CallRecord, f ListFilter) bool {
	switch f.Direction {
	case "":
	case "missed":
		if rec.Status != StatusMissed {
			return false
		}
	default:
		if string(rec.Direction) != f.Direction {
			return false
		}
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if f.TeamID != "" && rec.TeamID != f.TeamID {
		return false
	}
	if f.Number != "" && !strings.Contains(rec.FromNumber, f.Number) && !strings.Contains(rec.ToNumber, f.Number) {
		return false
	}
	if f.Search != "" && !strings.Contains(rec.FromNumber, f.Search) && !strings.Contains(rec.ToNumber, f.Search) {
		return false
	}
	return inRange(startedOrCreated(rec), f.From, f.To)
}

func startedOrCreated(rec CallRecord) time.Time {
	if rec.StartedAt != nil {
		return *rec.StartedAt
	}
	return rec.CreatedAt
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
