package transcription

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dialdesk/internal/calls"
	"dialdesk/internal/telephony"
)

type fakeObjects struct {
	uploads      map[string][]byte
	contentTypes map[string]string
	err          error
}

func (o *fakeObjects) Upload(ctx context.Context, bucket, object, contentType string, body []byte) error {
	if o.err != nil {
		return o.err
	}
	if o.uploads == nil {
		o.uploads = map[string][]byte{}
		o.contentTypes = map[string]string{}
	}
	o.uploads[object] = body
	o.contentTypes[object] = contentType
	return nil
}

func (o *fakeObjects) PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://cdn.example.com/%s/%s", bucket, object)
}

func seedProcessing(t *testing.T, store *calls.MemoryStore, id string) {
	t.Helper()
	err := store.Upsert(context.Background(), calls.CallRecord{
		ID:                  id,
		Direction:           calls.DirectionOutbound,
		Status:              calls.StatusCompleted,
		StatusEventAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:              "u1",
		TeamID:              "t1",
		RecordingURL:        "https://cdn.example.com/recordings/" + id + ".mp3",
		Transcript:          calls.ArtifactPending,
		TranscriptionStatus: calls.TranscriptionProcessing,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestHandleTranscriptionPlainText(t *testing.T) {
	store := calls.NewMemoryStore()
	seedProcessing(t, store, "CA1")
	objects := &fakeObjects{}
	p := New(store, objects, "transcripts")

	ev := telephony.TranscriptionEvent{
		CallSid:             "CA1",
		TranscriptionSid:    "TR1",
		TranscriptionText:   "  hello, thanks for calling  ",
		TranscriptionStatus: "completed",
	}
	if err := p.HandleTranscription(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if objects.contentTypes["CA1.txt"] != "text/plain" {
		t.Fatalf("uploads = %v", objects.contentTypes)
	}
	rec, _ := store.Get(context.Background(), "CA1")
	if rec.Transcript != "hello, thanks for calling" {
		t.Fatalf("transcript = %q", rec.Transcript)
	}
	if rec.TranscriptURL != "https://cdn.example.com/transcripts/CA1.txt" {
		t.Fatalf("transcript url = %q", rec.TranscriptURL)
	}
	if rec.TranscriptionStatus != calls.TranscriptionCompleted {
		t.Fatalf("status = %s", rec.TranscriptionStatus)
	}
}

func TestHandleTranscriptionSpeakerTurns(t *testing.T) {
	store := calls.NewMemoryStore()
	seedProcessing(t, store, "CA1")
	objects := &fakeObjects{}
	p := New(store, objects, "transcripts")

	ev := telephony.TranscriptionEvent{
		CallSid:           "CA1",
		TranscriptionText: `[{"speaker":"agent","text":"hello"},{"speaker":"caller","text":"hi"}]`,
	}
	if err := p.HandleTranscription(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if objects.contentTypes["CA1.json"] != "application/json" {
		t.Fatalf("uploads = %v", objects.contentTypes)
	}
	rec, _ := store.Get(context.Background(), "CA1")
	if rec.TranscriptURL != "https://cdn.example.com/transcripts/CA1.json" {
		t.Fatalf("transcript url = %q", rec.TranscriptURL)
	}
}

func TestHandleTranscriptionMalformedJSONFallsBackToText(t *testing.T) {
	store := calls.NewMemoryStore()
	seedProcessing(t, store, "CA1")
	objects := &fakeObjects{}
	p := New(store, objects, "transcripts")

	ev := telephony.TranscriptionEvent{CallSid: "CA1", TranscriptionText: `[not json`}
	if err := p.HandleTranscription(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := objects.uploads["CA1.txt"]; !ok {
		t.Fatalf("expected text artifact, got %v", objects.uploads)
	}
}

func TestHandleTranscriptionProviderFailure(t *testing.T) {
	store := calls.NewMemoryStore()
	seedProcessing(t, store, "CA1")
	p := New(store, &fakeObjects{}, "transcripts")

	ev := telephony.TranscriptionEvent{CallSid: "CA1", TranscriptionStatus: "failed"}
	if err := p.HandleTranscription(context.Background(), ev); err != nil {
		t.Fatalf("provider failure must be acknowledged: %v", err)
	}
	rec, _ := store.Get(context.Background(), "CA1")
	if rec.TranscriptionStatus != calls.TranscriptionFailed {
		t.Fatalf("status = %s", rec.TranscriptionStatus)
	}
	if rec.RecordingURL == "" {
		t.Fatal("recording url lost")
	}
}

func TestHandleTranscriptionUploadFailure(t *testing.T) {
	store := calls.NewMemoryStore()
	seedProcessing(t, store, "CA1")
	p := New(store, &fakeObjects{err: errors.New("bucket down")}, "transcripts")

	ev := telephony.TranscriptionEvent{CallSid: "CA1", TranscriptionText: "hello"}
	if err := p.HandleTranscription(context.Background(), ev); err == nil {
		t.Fatal("upload failure must surface for provider retry")
	}
	rec, _ := store.Get(context.Background(), "CA1")
	if rec.TranscriptionStatus != calls.TranscriptionProcessing {
		t.Fatalf("status advanced despite failed upload: %s", rec.TranscriptionStatus)
	}
}

func TestHandleTranscriptionDropsWithoutCallSid(t *testing.T) {
	p := New(calls.NewMemoryStore(), &fakeObjects{}, "transcripts")
	if err := p.HandleTranscription(context.Background(), telephony.TranscriptionEvent{}); err != nil {
		t.Fatalf("empty event: %v", err)
	}
}
