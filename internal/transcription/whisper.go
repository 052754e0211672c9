package transcription

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"dialdesk/internal/telephony"
)

const (
	defaultWhisperBaseURL = "https://api.openai.com/v1"
	defaultWhisperModel   = "whisper-1"
)

// Whisper transcribes call audio through the OpenAI speech-to-text API and
// stores the result via the transcription pipeline, so synchronous
// transcription after a recording and provider-pushed transcripts land the
// same way.
type Whisper struct {
	http     *resty.Client
	model    string
	pipeline *Pipeline
}

// NewWhisper builds a transcriber. baseURL and model fall back to the
// OpenAI defaults when empty.
func NewWhisper(baseURL, apiKey, model string, pipeline *Pipeline, timeout time.Duration) *Whisper {
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
	}
	if model == "" {
		model = defaultWhisperModel
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &Whisper{http: client, model: model, pipeline: pipeline}
}

type whisperResponse struct {
	Text string `json:"text"`
}

// TranscribeAudio sends the recording to the API and folds the resulting
// text into the call record through the shared pipeline.
func (w *Whisper) TranscribeAudio(ctx context.Context, callID string, audio []byte) error {
	var out whisperResponse
	resp, err := w.http.R().
		SetContext(ctx).
		SetFileReader("file", callID+".mp3", bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": w.model}).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", callID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("transcribe %s: status %d", callID, resp.StatusCode())
	}

	return w.pipeline.HandleTranscription(ctx, telephony.TranscriptionEvent{
		CallSid:             callID,
		TranscriptionText:   out.Text,
		TranscriptionStatus: "completed",
	})
}
