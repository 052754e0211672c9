package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dialdesk/internal/calls"
	"dialdesk/internal/storage"
	"dialdesk/internal/telephony"
	"dialdesk/pkg/logger"
)

// Pipeline stores finished transcripts. The provider posts either plain
// text or a JSON array of speaker turns; the artifact keeps whichever
// shape arrived so the UI can render speaker labels when it has them.
type Pipeline struct {
	store   calls.Store
	objects storage.ObjectStore
	bucket  string
}

func New(store calls.Store, objects storage.ObjectStore, bucket string) *Pipeline {
	return &Pipeline{store: store, objects: objects, bucket: bucket}
}

// HandleTranscription processes one transcription callback. A failed
// transcription is recorded on the call and acknowledged; only upload and
// store failures surface for provider redelivery.
func (p *Pipeline) HandleTranscription(ctx context.Context, ev telephony.TranscriptionEvent) error {
	log := logger.From(ctx)

	if ev.CallSid == "" {
		log.Warn("dropping transcription event without CallSid",
			"transcription_sid", ev.TranscriptionSid)
		return nil
	}

	text := strings.TrimSpace(ev.TranscriptionText)
	if ev.TranscriptionStatus == "failed" || text == "" {
		log.Warn("transcription failed at provider",
			"call_id", ev.CallSid, "status", ev.TranscriptionStatus)
		return p.store.Upsert(ctx, calls.CallRecord{
			ID:                  ev.CallSid,
			TranscriptionStatus: calls.TranscriptionFailed,
		})
	}

	object, contentType := ev.CallSid+".txt", "text/plain"
	if isSpeakerTurns(text) {
		object, contentType = ev.CallSid+".json", "application/json"
	}

	if err := p.objects.Upload(ctx, p.bucket, object, contentType, []byte(text)); err != nil {
		return fmt.Errorf("transcription %s: %w", ev.CallSid, err)
	}

	rec := calls.CallRecord{
		ID:                  ev.CallSid,
		Transcript:          text,
		TranscriptURL:       p.objects.PublicURL(p.bucket, object),
		TranscriptionStatus: calls.TranscriptionCompleted,
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("transcription %s: %w", ev.CallSid, err)
	}

	log.Info("transcript stored", "call_id", ev.CallSid, "object", object)
	return nil
}

// isSpeakerTurns reports whether the transcript is the structured JSON
// array form rather than flat text.
func isSpeakerTurns(text string) bool {
	if !strings.HasPrefix(text, "[") {
		return false
	}
	return json.Valid([]byte(text))
}
