package config

import (
	"testing"
	"time"
)

func valid() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialdesk"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{
			AccountSID:      "AC123",
			AuthToken:       "token",
			APIKeySID:       "SK123",
			APIKeySecret:    "keysecret",
			TwiMLAppSID:     "AP123",
			CallbackBaseURL: "https://phone.example.com/",
		},
		Storage: StorageConfig{BaseURL: "https://proj.supabase.co", ServiceKey: "svc"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := valid()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access ttl default = %v", c.Auth.AccessTokenTTL)
	}
	if c.Twilio.PendingWindow != 5*time.Minute {
		t.Fatalf("pending window default = %v", c.Twilio.PendingWindow)
	}
	if c.Twilio.CallbackBaseURL != "https://phone.example.com" {
		t.Fatalf("callback base not normalized: %q", c.Twilio.CallbackBaseURL)
	}
	if c.Storage.RecordingsBucket != "call-recordings" || c.Storage.TranscriptsBucket != "call-transcripts" {
		t.Fatalf("bucket defaults = %q / %q", c.Storage.RecordingsBucket, c.Storage.TranscriptsBucket)
	}
}

func TestValidate_TranscriptionDefaults(t *testing.T) {
	c := valid()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Transcription.Enabled() {
		t.Fatal("transcription enabled without an API key")
	}
	if c.Transcription.Model != "" {
		t.Fatalf("model defaulted while disabled: %q", c.Transcription.Model)
	}

	c = valid()
	c.Transcription.APIKey = "sk-test"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Transcription.Model != "whisper-1" {
		t.Fatalf("model default = %q", c.Transcription.Model)
	}

	c = valid()
	c.Transcription.BaseURL = "api.example.com"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for non-http transcription base url")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := valid()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_RejectsBadCallbackURL(t *testing.T) {
	c := valid()
	c.Twilio.CallbackBaseURL = "phone.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-http callback base url")
	}
}

func TestValidate_RequiresTwilioCredentials(t *testing.T) {
	c := valid()
	c.Twilio.APIKeySecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing api key secret")
	}
}
