package reporting

import (
	"context"
	"errors"
	"time"

	"dialdesk/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Period is the preset time window the analytics screens offer.
type Period string

const (
	PeriodWeek    Period = "7d"
	PeriodMonth   Period = "30d"
	PeriodQuarter Period = "90d"
	PeriodAll     Period = "all"
)

// SummaryRequest scopes the aggregate. An empty UserID is the admin view
// across all users; agents always pass their own id.
type SummaryRequest struct {
	UserID string
	TeamID string
	Period Period
}

// Service answers the analytics aggregates from canonical call records.
type Service struct {
	store calls.Store
	now   func() time.Time
}

func NewService(store calls.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (calls.Summary, error) {
	from, err := periodStart(req.Period, s.now())
	if err != nil {
		return calls.Summary{}, err
	}
	return s.store.Summary(ctx, calls.SummaryFilter{
		UserID: req.UserID,
		TeamID: req.TeamID,
		From:   from,
	})
}

func periodStart(p Period, now time.Time) (time.Time, error) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth, "":
		return now.AddDate(0, 0, -30), nil
	case PeriodQuarter:
		return now.AddDate(0, 0, -90), nil
	case PeriodAll:
		return time.Time{}, nil
	default:
		return time.Time{}, ErrInvalidRequest
	}
}
