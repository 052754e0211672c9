package recording

import (
	"context"
	"fmt"

	"dialdesk/internal/calls"
	"dialdesk/internal/storage"
	"dialdesk/internal/telephony"
	"dialdesk/pkg/logger"
)

// Transcriber turns recorded audio into a transcript and stores it on the
// call record. Implementations must be safe to call again for the same
// call id.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, callID string, audio []byte) error
}

// Pipeline mirrors a finished provider recording into our own storage and
// fans the artifact out across the call's legs. The provider's media URLs
// expire; the copy in the bucket is the durable one the UI plays.
type Pipeline struct {
	store       calls.Store
	fetcher     telephony.MediaFetcher
	objects     storage.ObjectStore
	transcriber Transcriber
	bucket      string
}

// New builds a pipeline. transcriber may be nil when no transcription
// backend is configured.
func New(store calls.Store, fetcher telephony.MediaFetcher, objects storage.ObjectStore, transcriber Transcriber, bucket string) *Pipeline {
	return &Pipeline{
		store:       store,
		fetcher:     fetcher,
		objects:     objects,
		transcriber: transcriber,
		bucket:      bucket,
	}
}

// HandleRecording processes one recording-ready callback. Fetch and upload
// failures are returned so the webhook responds non-2xx and the provider
// redelivers; transcription failures are terminal for the transcript only
// and never fail the recording.
func (p *Pipeline) HandleRecording(ctx context.Context, ev telephony.RecordingEvent) error {
	log := logger.From(ctx)

	if ev.CallSid == "" || ev.RecordingURL == "" {
		log.Warn("dropping recording event without CallSid or url",
			"call_id", ev.CallSid, "recording_sid", ev.RecordingSid)
		return nil
	}
	if ev.RecordingStatus != "" && ev.RecordingStatus != "completed" {
		log.Debug("ignoring non-final recording status",
			"call_id", ev.CallSid, "status", ev.RecordingStatus)
		return nil
	}

	audio, err := p.fetcher.FetchRecording(ctx, ev.RecordingURL)
	if err != nil {
		return fmt.Errorf("recording %s: %w", ev.CallSid, err)
	}

	object := ev.CallSid + ".mp3"
	if err := p.objects.Upload(ctx, p.bucket, object, "audio/mpeg", audio); err != nil {
		return fmt.Errorf("recording %s: %w", ev.CallSid, err)
	}
	recordingURL := p.objects.PublicURL(p.bucket, object)

	rec := calls.CallRecord{
		ID:                  ev.CallSid,
		DurationSeconds:     ev.Duration,
		RecordingURL:        recordingURL,
		Transcript:          calls.ArtifactPending,
		TranscriptionStatus: calls.TranscriptionProcessing,
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("recording %s: %w", ev.CallSid, err)
	}

	// Parallel-dial legs share one recording; children get the same URL so
	// the UI finds it regardless of which leg it shows.
	report, err := p.store.PropagateRecording(ctx, ev.CallSid, recordingURL)
	if err != nil {
		log.Warn("recording propagation failed", "call_id", ev.CallSid, "err", err)
	}
	for _, f := range report.Failed {
		log.Warn("recording propagation failed for child leg",
			"call_id", ev.CallSid, "child_id", f.CallID, "err", f.Err)
	}

	log.Info("recording stored",
		"call_id", ev.CallSid, "recording_url", recordingURL, "children_updated", len(report.Updated))

	if p.transcriber == nil {
		return nil
	}
	if err := p.transcriber.TranscribeAudio(ctx, ev.CallSid, audio); err != nil {
		log.Warn("transcription failed", "call_id", ev.CallSid, "err", err)
		if uerr := p.store.Upsert(ctx, calls.CallRecord{
			ID:                  ev.CallSid,
			TranscriptionStatus: calls.TranscriptionFailed,
		}); uerr != nil {
			log.Warn("could not mark transcription failed", "call_id", ev.CallSid, "err", uerr)
		}
	}
	return nil
}
