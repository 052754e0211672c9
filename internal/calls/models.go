package calls

import "time"

// CallRecord is the canonical per-call row, keyed by the provider-assigned
// call id. Exactly one record exists per id; every writer goes through
// Store.Upsert, never a blind insert.
//
// NOTE: user_id/team_id attribution is resolved from webhook context, not
// from the provider, so a record may be held back (not written) until both
// are known. See internal/reconcile.

type CallRecord struct {
	ID           string `json:"id" db:"id"`
	ParentCallID string `json:"parent_call_id,omitempty" db:"parent_call_id"`

	Direction  Direction `json:"direction" db:"direction"`
	FromNumber string    `json:"from_number" db:"from_number"`
	ToNumber   string    `json:"to_number" db:"to_number"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is nil while unknown; once set it is never replaced
	// by nil or by a value from a staler event.
	DurationSeconds *int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	Status Status `json:"status" db:"status"`

	// StatusEventAt is the provider-reported timestamp of the event that
	// produced Status. Status only advances when a newer event arrives,
	// which makes the record order-independent under webhook reordering.
	StatusEventAt time.Time `json:"status_event_at" db:"status_event_at"`

	UserID string `json:"user_id,omitempty" db:"user_id"`
	TeamID string `json:"team_id,omitempty" db:"team_id"`

	// RecordingURL and Transcript may hold the ArtifactPending sentinel
	// while the corresponding pipeline is still running; the UI polls on it.
	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript    string `json:"transcript,omitempty" db:"transcript"`
	TranscriptURL string `json:"transcript_url,omitempty" db:"transcript_url"`

	TranscriptionStatus TranscriptionStatus `json:"transcription_status" db:"transcription_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
	StatusFailed     Status = "failed"
)

// MapProviderStatus collapses the provider's terminal failure variants into
// a single "missed" status; live statuses pass through unchanged.
func MapProviderStatus(providerStatus string) Status {
	switch providerStatus {
	case "busy", "no-answer", "failed", "canceled":
		return StatusMissed
	case "completed":
		return StatusCompleted
	case "answered":
		// Twilio reports answered dial legs before in-progress; same state.
		return StatusInProgress
	default:
		return Status(providerStatus)
	}
}

// Terminal reports whether s is an end state for a call leg.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusMissed || s == StatusFailed
}

type TranscriptionStatus string

const (
	TranscriptionNone       TranscriptionStatus = "none"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionCompleted  TranscriptionStatus = "completed"
	TranscriptionFailed     TranscriptionStatus = "failed"
)

// ArtifactPending marks a recording or transcript that is still being
// produced. The literal matches what the activity views poll on.
const ArtifactPending = "pending"
