package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key", 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Upload(context.Background(), "recordings", "CA1.mp3", "audio/mpeg", []byte("mp3data")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotPath != "/storage/v1/object/recordings/CA1.mp3" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Fatalf("x-upsert = %q", gotUpsert)
	}
	if gotContentType != "audio/mpeg" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if string(gotBody) != "mp3data" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestUploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bucket not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "service-key", 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Upload(context.Background(), "missing", "x.txt", "text/plain", nil); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestPublicURL(t *testing.T) {
	c, err := NewClient("https://proj.supabase.co/", "service-key", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got := c.PublicURL("transcripts", "CA1.json")
	want := "https://proj.supabase.co/storage/v1/object/public/transcripts/CA1.json"
	if got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("not a url", "k", 0); err == nil {
		t.Fatal("expected error for invalid base url")
	}
	if _, err := NewClient("https://proj.supabase.co", "", 0); err == nil {
		t.Fatal("expected error for missing service key")
	}
}
