package calls

import "time"

// Merge folds an incoming event's view of a call into the existing record.
// It is the single merge policy for every writer (status reconciler,
// recording pipeline, transcription pipeline, backfill) and encodes the
// ordering-robustness rules:
//
//   - status, ended_at and duration follow whichever event is newest by
//     provider-reported timestamp, never by arrival order;
//   - a known direction never regresses to unknown;
//   - a set duration is never replaced by nil or by a stale value;
//   - attribution (user/team) is never cleared, and a missed-status event
//     never replaces a previously known identity with a different one;
//   - a real artifact URL is never replaced by the "pending" sentinel.
//
// The second return value reports whether anything other than timestamps
// would change; redundant webhook deliveries merge to changed=false.
func Merge(existing CallRecord, incoming CallRecord) (CallRecord, bool) {
	out := existing
	if out.ID == "" {
		// No prior record: the incoming event is the record.
		out = incoming
		if out.Direction == "" {
			out.Direction = DirectionUnknown
		}
		if out.TranscriptionStatus == "" {
			out.TranscriptionStatus = TranscriptionNone
		}
		return out, true
	}

	newer := !incoming.StatusEventAt.Before(existing.StatusEventAt)

	if incoming.ParentCallID != "" {
		out.ParentCallID = incoming.ParentCallID
	}
	if incoming.Direction.Known() {
		out.Direction = incoming.Direction
	}
	if incoming.FromNumber != "" {
		out.FromNumber = incoming.FromNumber
	}
	if incoming.ToNumber != "" {
		out.ToNumber = incoming.ToNumber
	}
	if out.StartedAt == nil {
		out.StartedAt = incoming.StartedAt
	}

	if newer && incoming.Status != "" {
		out.Status = incoming.Status
		if incoming.EndedAt != nil {
			out.EndedAt = incoming.EndedAt
		}
	}
	if incoming.StatusEventAt.After(out.StatusEventAt) {
		out.StatusEventAt = incoming.StatusEventAt
	}

	if incoming.DurationSeconds != nil && (existing.DurationSeconds == nil || newer) {
		out.DurationSeconds = incoming.DurationSeconds
	}

	out.UserID = mergeIdentity(existing.UserID, incoming.UserID, incoming.Status)
	out.TeamID = mergeIdentity(existing.TeamID, incoming.TeamID, incoming.Status)

	out.RecordingURL = mergeArtifact(existing.RecordingURL, incoming.RecordingURL)
	out.Transcript = mergeArtifact(existing.Transcript, incoming.Transcript)
	if incoming.TranscriptURL != "" {
		out.TranscriptURL = incoming.TranscriptURL
	}
	out.TranscriptionStatus = mergeTranscriptionStatus(existing.TranscriptionStatus, incoming.TranscriptionStatus)

	changed := !equalIgnoringTimestamps(existing, out)
	return out, changed
}

// mergeIdentity keeps known attribution. Missed-status events preserve
// attribution but are not authoritative: they may fill a blank, never
// replace a known identity.
func mergeIdentity(existing, incoming string, incomingStatus Status) string {
	if incoming == "" {
		return existing
	}
	if incomingStatus == StatusMissed && existing != "" {
		return existing
	}
	return incoming
}

func mergeArtifact(existing, incoming string) string {
	if incoming == "" {
		return existing
	}
	if incoming == ArtifactPending && existing != "" && existing != ArtifactPending {
		return existing
	}
	return incoming
}

func mergeTranscriptionStatus(existing, incoming TranscriptionStatus) TranscriptionStatus {
	switch incoming {
	case "", TranscriptionNone:
		if existing == "" {
			return TranscriptionNone
		}
		return existing
	case TranscriptionProcessing:
		if existing == TranscriptionCompleted {
			return existing
		}
		return incoming
	default:
		return incoming
	}
}

func equalIgnoringTimestamps(a, b CallRecord) bool {
	return a.ParentCallID == b.ParentCallID &&
		a.Direction == b.Direction &&
		a.FromNumber == b.FromNumber &&
		a.ToNumber == b.ToNumber &&
		equalTimePtr(a.StartedAt, b.StartedAt) &&
		equalTimePtr(a.EndedAt, b.EndedAt) &&
		equalIntPtr(a.DurationSeconds, b.DurationSeconds) &&
		a.Status == b.Status &&
		a.UserID == b.UserID &&
		a.TeamID == b.TeamID &&
		a.RecordingURL == b.RecordingURL &&
		a.Transcript == b.Transcript &&
		a.TranscriptURL == b.TranscriptURL &&
		a.TranscriptionStatus == b.TranscriptionStatus
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
