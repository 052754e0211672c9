package telephony

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Webhook form parsing for the provider's voice callbacks. Twilio posts
// application/x-www-form-urlencoded; the user_id/team_id side-channel the
// call-control responder registered rides on the callback URL's query
// string, since Twilio will not echo custom form fields back.

// StatusEvent is one delivery of the call-status callback.
type StatusEvent struct {
	CallSid       string
	ParentCallSid string

	From          string
	To            string
	CallStatus    string
	DirectionHint string

	// Side-channel identity hints from the callback URL query string.
	UserIDHint string
	TeamIDHint string

	// EventAt is the provider-reported event timestamp; events must be
	// ordered by this, never by arrival.
	EventAt time.Time

	StartedAt *time.Time
	EndedAt   *time.Time

	// Duration fields in preference order: CallDuration, then
	// RecordingDuration, then Duration (all seconds).
	CallDuration      *int
	RecordingDuration *int
	Duration          *int
}

// ParseStatusEvent reads a call-status callback. An empty CallSid marks
// the payload malformed; the handler acknowledges and drops it.
func ParseStatusEvent(r *http.Request) (StatusEvent, error) {
	if err := r.ParseForm(); err != nil {
		return StatusEvent{}, err
	}
	q := r.URL.Query()
	ev := StatusEvent{
		CallSid:           r.PostFormValue("CallSid"),
		ParentCallSid:     r.PostFormValue("ParentCallSid"),
		From:              strings.TrimSpace(r.PostFormValue("From")),
		To:                strings.TrimSpace(r.PostFormValue("To")),
		CallStatus:        r.PostFormValue("CallStatus"),
		DirectionHint:     r.PostFormValue("Direction"),
		UserIDHint:        q.Get("user_id"),
		TeamIDHint:        q.Get("team_id"),
		StartedAt:         parseTimePtr(r.PostFormValue("StartTime")),
		EndedAt:           parseTimePtr(r.PostFormValue("EndTime")),
		CallDuration:      parseSecondsPtr(r.PostFormValue("CallDuration")),
		RecordingDuration: parseSecondsPtr(r.PostFormValue("RecordingDuration")),
		Duration:          parseSecondsPtr(r.PostFormValue("Duration")),
	}
	if t := parseTimePtr(r.PostFormValue("Timestamp")); t != nil {
		ev.EventAt = *t
	} else {
		ev.EventAt = time.Now().UTC()
	}
	return ev, nil
}

// RecordingEvent is one delivery of the recording-ready callback.
type RecordingEvent struct {
	CallSid         string
	RecordingSid    string
	RecordingURL    string
	RecordingStatus string
	Duration        *int
}

func ParseRecordingEvent(r *http.Request) (RecordingEvent, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingEvent{}, err
	}
	return RecordingEvent{
		CallSid:         r.PostFormValue("CallSid"),
		RecordingSid:    r.PostFormValue("RecordingSid"),
		RecordingURL:    r.PostFormValue("RecordingUrl"),
		RecordingStatus: r.PostFormValue("RecordingStatus"),
		Duration:        parseSecondsPtr(r.PostFormValue("RecordingDuration")),
	}, nil
}

// TranscriptionEvent is one delivery of the transcription-ready callback.
// TranscriptionText is either plain text or a JSON array of speaker turns.
type TranscriptionEvent struct {
	CallSid             string
	TranscriptionSid    string
	TranscriptionText   string
	TranscriptionStatus string
}

func ParseTranscriptionEvent(r *http.Request) (TranscriptionEvent, error) {
	if err := r.ParseForm(); err != nil {
		return TranscriptionEvent{}, err
	}
	return TranscriptionEvent{
		CallSid:             r.PostFormValue("CallSid"),
		TranscriptionSid:    r.PostFormValue("TranscriptionSid"),
		TranscriptionText:   r.PostFormValue("TranscriptionText"),
		TranscriptionStatus: r.PostFormValue("TranscriptionStatus"),
	}, nil
}

// timeLayouts covers the formats seen on Twilio voice callbacks: RFC 1123
// on live webhooks, RFC 3339 on replayed/test traffic.
var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
}

func parseTimePtr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseSecondsPtr(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
