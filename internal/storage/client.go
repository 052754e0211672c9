package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ObjectStore uploads call artifacts and answers their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, body []byte) error
	PublicURL(bucket, object string) string
}

// Client talks to a Supabase-compatible storage REST API using the
// service-role key.
type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(baseURL, serviceKey string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("storage: invalid base url %q", baseURL)
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("storage: service key required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(serviceKey).
		SetTimeout(timeout)
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes an object, replacing any previous version. Provider
// webhooks are retried, so uploads must be safe to repeat.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, body []byte) error {
	if bucket == "" || object == "" {
		return fmt.Errorf("storage: bucket and object required")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(body).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", bucket, object))
	if err != nil {
		return fmt.Errorf("storage upload %s/%s: %w", bucket, object, err)
	}
	if resp.IsError() {
		return fmt.Errorf("storage upload %s/%s: status %d: %s", bucket, object, resp.StatusCode(), resp.String())
	}
	return nil
}

// PublicURL is deterministic; it does not require the object to exist yet.
func (c *Client) PublicURL(bucket, object string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, object)
}
