package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore persists CallRecord rows in the call_logs table.
//
// NOTE: schema lives in internal/database/migrations. The merge policy is
// expressed as a single conditional upsert so that concurrent deliveries
// for the same call id from multiple process instances cannot clobber
// attribution, regress direction, or apply a stale status.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertCallQuery = `
INSERT INTO call_logs (
	id, parent_call_id, direction, from_number, to_number,
	started_at, ended_at, duration_seconds, status, status_event_at,
	user_id, team_id, recording_url, transcript, transcript_url,
	transcription_status, created_at, updated_at
) VALUES (
	$1, NULLIF($2, ''), $3, $4, $5,
	$6, $7, $8, $9, $10,
	NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''),
	$16, now(), now()
)
ON CONFLICT (id) DO UPDATE SET
	parent_call_id = COALESCE(NULLIF(EXCLUDED.parent_call_id, ''), call_logs.parent_call_id),
	direction = CASE
		WHEN EXCLUDED.direction IN ('inbound', 'outbound') THEN EXCLUDED.direction
		ELSE call_logs.direction
	END,
	from_number = COALESCE(NULLIF(EXCLUDED.from_number, ''), call_logs.from_number),
	to_number = COALESCE(NULLIF(EXCLUDED.to_number, ''), call_logs.to_number),
	started_at = COALESCE(call_logs.started_at, EXCLUDED.started_at),
	ended_at = CASE
		WHEN EXCLUDED.status <> ''
			AND EXCLUDED.status_event_at >= call_logs.status_event_at
			THEN COALESCE(EXCLUDED.ended_at, call_logs.ended_at)
		ELSE call_logs.ended_at
	END,
	duration_seconds = CASE
		WHEN EXCLUDED.duration_seconds IS NULL THEN call_logs.duration_seconds
		WHEN call_logs.duration_seconds IS NULL
			OR EXCLUDED.status_event_at >= call_logs.status_event_at
			THEN EXCLUDED.duration_seconds
		ELSE call_logs.duration_seconds
	END,
	status = CASE
		WHEN EXCLUDED.status <> ''
			AND EXCLUDED.status_event_at >= call_logs.status_event_at
			THEN EXCLUDED.status
		ELSE call_logs.status
	END,
	status_event_at = GREATEST(call_logs.status_event_at, EXCLUDED.status_event_at),
	user_id = CASE
		WHEN EXCLUDED.user_id IS NULL THEN call_logs.user_id
		WHEN EXCLUDED.status = 'missed' AND call_logs.user_id IS NOT NULL THEN call_logs.user_id
		ELSE EXCLUDED.user_id
	END,
	team_id = CASE
		WHEN EXCLUDED.team_id IS NULL THEN call_logs.team_id
		WHEN EXCLUDED.status = 'missed' AND call_logs.team_id IS NOT NULL THEN call_logs.team_id
		ELSE EXCLUDED.team_id
	END,
	recording_url = CASE
		WHEN EXCLUDED.recording_url IS NULL THEN call_logs.recording_url
		WHEN EXCLUDED.recording_url = 'pending'
			AND call_logs.recording_url IS NOT NULL
			AND call_logs.recording_url <> 'pending'
			THEN call_logs.recording_url
		ELSE EXCLUDED.recording_url
	END,
	transcript = CASE
		WHEN EXCLUDED.transcript IS NULL THEN call_logs.transcript
		WHEN EXCLUDED.transcript = 'pending'
			AND call_logs.transcript IS NOT NULL
			AND call_logs.transcript <> 'pending'
			THEN call_logs.transcript
		ELSE EXCLUDED.transcript
	END,
	transcript_url = COALESCE(NULLIF(EXCLUDED.transcript_url, ''), call_logs.transcript_url),
	transcription_status = CASE
		WHEN EXCLUDED.transcription_status = 'none' THEN call_logs.transcription_status
		WHEN EXCLUDED.transcription_status = 'processing'
			AND call_logs.transcription_status = 'completed'
			THEN call_logs.transcription_status
		ELSE EXCLUDED.transcription_status
	END,
	updated_at = now()
`

func (s *PostgresStore) Upsert(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" {
		return errors.New("calls: call id is required")
	}
	if rec.Direction == "" {
		rec.Direction = DirectionUnknown
	}
	if rec.TranscriptionStatus == "" {
		rec.TranscriptionStatus = TranscriptionNone
	}
	// A zero StatusEventAt marks an artifact-only write (recording or
	// transcript). It is stored as-is so it never wins the recency
	// comparison against a real provider-reported timestamp.

	_, err := s.db.ExecContext(ctx, upsertCallQuery,
		rec.ID,
		rec.ParentCallID,
		string(rec.Direction),
		rec.FromNumber,
		rec.ToNumber,
		rec.StartedAt,
		rec.EndedAt,
		rec.DurationSeconds,
		string(rec.Status),
		rec.StatusEventAt,
		rec.UserID,
		rec.TeamID,
		rec.RecordingURL,
		rec.Transcript,
		rec.TranscriptURL,
		string(rec.TranscriptionStatus),
	)
	if err != nil {
		return fmt.Errorf("calls: upsert %s: %w", rec.ID, err)
	}
	return nil
}

const selectCallColumns = `
	id, COALESCE(parent_call_id, ''), direction, COALESCE(from_number, ''), COALESCE(to_number, ''),
	started_at, ended_at, duration_seconds, status, status_event_at,
	COALESCE(user_id, ''), COALESCE(team_id, ''), COALESCE(recording_url, ''), COALESCE(transcript, ''),
	COALESCE(transcript_url, ''), transcription_status, created_at, updated_at
`

func (s *PostgresStore) Get(ctx context.Context, id string) (CallRecord, error) {
	q := `SELECT ` + selectCallColumns + ` FROM call_logs WHERE id = $1`
	rec, err := scanCall(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, fmt.Errorf("calls: get %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Direction {
	case "":
	case "missed":
		where = append(where, "status = "+arg(string(StatusMissed)))
	default:
		where = append(where, "direction = "+arg(f.Direction))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.TeamID != "" {
		where = append(where, "team_id = "+arg(f.TeamID))
	}
	if f.Number != "" {
		p := arg("%" + f.Number + "%")
		where = append(where, "(from_number LIKE "+p+" OR to_number LIKE "+p+")")
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, "(from_number LIKE "+p+" OR to_number LIKE "+p+")")
	}
	if !f.From.IsZero() {
		where = append(where, "COALESCE(started_at, created_at) >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "COALESCE(started_at, created_at) <= "+arg(f.To))
	}

	q := `SELECT ` + selectCallColumns + ` FROM call_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY COALESCE(started_at, created_at) DESC"
	q += " LIMIT " + arg(f.limit())
	q += " OFFSET " + arg(f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("calls: list: %w", err)
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("calls: list scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PropagateRecording(ctx context.Context, parentID, recordingURL string) (PropagationReport, error) {
	const listChildren = `SELECT id FROM call_logs WHERE parent_call_id = $1`
	rows, err := s.db.QueryContext(ctx, listChildren, parentID)
	if err != nil {
		return PropagationReport{}, fmt.Errorf("calls: list children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var childIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return PropagationReport{}, fmt.Errorf("calls: scan child id: %w", err)
		}
		childIDs = append(childIDs, id)
	}
	if err := rows.Err(); err != nil {
		return PropagationReport{}, err
	}

	// Each child updated independently: one failing must not stop siblings.
	const updateChild = `UPDATE call_logs SET recording_url = $2, updated_at = now() WHERE id = $1`
	var report PropagationReport
	for _, id := range childIDs {
		if _, err := s.db.ExecContext(ctx, updateChild, id, recordingURL); err != nil {
			report.Failed = append(report.Failed, PropagationFailure{CallID: id, Err: err})
			continue
		}
		report.Updated = append(report.Updated, id)
	}
	return report, nil
}

func (s *PostgresStore) Summary(ctx context.Context, f SummaryFilter) (Summary, error) {
	var (
		where = []string{"1=1"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.TeamID != "" {
		where = append(where, "team_id = "+arg(f.TeamID))
	}
	if !f.From.IsZero() {
		where = append(where, "COALESCE(started_at, created_at) >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "COALESCE(started_at, created_at) <= "+arg(f.To))
	}

	q := `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'missed'),
	COUNT(*) FILTER (WHERE direction = 'inbound'),
	COUNT(*) FILTER (WHERE direction = 'outbound'),
	COALESCE(SUM(duration_seconds), 0),
	COUNT(*) FILTER (WHERE recording_url IS NOT NULL AND recording_url <> 'pending')
FROM call_logs
WHERE ` + strings.Join(where, " AND ")

	var sum Summary
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&sum.TotalCalls,
		&sum.CompletedCalls,
		&sum.MissedCalls,
		&sum.InboundCalls,
		&sum.OutboundCalls,
		&sum.TotalDurationSeconds,
		&sum.RecordedCalls,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("calls: summary: %w", err)
	}
	if sum.TotalCalls > 0 {
		sum.AverageDurationSeconds = sum.TotalDurationSeconds / sum.TotalCalls
	}
	return sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec      CallRecord
		started  sql.NullTime
		ended    sql.NullTime
		duration sql.NullInt64
	)
	err := row.Scan(
		&rec.ID,
		&rec.ParentCallID,
		&rec.Direction,
		&rec.FromNumber,
		&rec.ToNumber,
		&started,
		&ended,
		&duration,
		&rec.Status,
		&rec.StatusEventAt,
		&rec.UserID,
		&rec.TeamID,
		&rec.RecordingURL,
		&rec.Transcript,
		&rec.TranscriptURL,
		&rec.TranscriptionStatus,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	if started.Valid {
		t := started.Time
		rec.StartedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		rec.EndedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		rec.DurationSeconds = &d
	}
	return rec, nil
}
