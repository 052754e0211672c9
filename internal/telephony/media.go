package telephony

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// MediaFetcher downloads call recordings from the provider.
type MediaFetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// RestMediaFetcher fetches recording media over the provider's REST API
// using account credentials.
type RestMediaFetcher struct {
	http *resty.Client
}

func NewRestMediaFetcher(accountSID, authToken string, timeout time.Duration) *RestMediaFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBasicAuth(accountSID, authToken).
		SetTimeout(timeout)
	return &RestMediaFetcher{http: client}
}

// FetchRecording downloads the mp3 rendition of a recording. The provider
// reports recording URLs without an extension; appending .mp3 selects the
// compressed format.
func (f *RestMediaFetcher) FetchRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	if recordingURL == "" {
		return nil, fmt.Errorf("telephony: recording url required")
	}
	if !strings.HasSuffix(recordingURL, ".mp3") {
		recordingURL += ".mp3"
	}

	resp, err := f.http.R().SetContext(ctx).Get(recordingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch recording: provider returned %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
