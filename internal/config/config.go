package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Twilio        TwilioConfig
	Storage       StorageConfig
	Transcription TranscriptionConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is explicit on purpose.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	APIKeySID    string
	APIKeySecret string
	TwiMLAppSID  string

	// CallbackBaseURL is the externally reachable base URL Twilio posts
	// webhooks to, e.g. "https://phone.example.com".
	CallbackBaseURL string

	// CallerID is the default outbound caller id when the user's team has
	// no phone number.
	CallerID string

	// DefaultClientIdentity receives inbound calls for teams with no users.
	DefaultClientIdentity string

	// PendingWindow bounds how long a browser-initiated dial may wait for
	// its provider leg before the match expires.
	PendingWindow time.Duration
}

type StorageConfig struct {
	BaseURL           string
	ServiceKey        string
	RecordingsBucket  string
	TranscriptsBucket string
}

// TranscriptionConfig drives synchronous speech-to-text after a recording
// lands. An empty APIKey disables it; calls then stay in the processing
// state until a provider transcription callback arrives.
type TranscriptionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (t TranscriptionConfig) Enabled() bool { return t.APIKey != "" }

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.APIKeySID = strings.TrimSpace(os.Getenv("TWILIO_API_KEY_SID"))
	c.Twilio.APIKeySecret = os.Getenv("TWILIO_API_KEY_SECRET")
	c.Twilio.TwiMLAppSID = strings.TrimSpace(os.Getenv("TWILIO_TWIML_APP_SID"))
	c.Twilio.CallbackBaseURL = strings.TrimSpace(os.Getenv("TWILIO_CALLBACK_BASE_URL"))
	c.Twilio.CallerID = strings.TrimSpace(os.Getenv("TWILIO_CALLER_ID"))
	c.Twilio.DefaultClientIdentity = strings.TrimSpace(os.Getenv("TWILIO_DEFAULT_CLIENT_IDENTITY"))
	c.Twilio.PendingWindow = mustDuration("PENDING_CALL_WINDOW")

	c.Storage.BaseURL = strings.TrimSpace(os.Getenv("STORAGE_BASE_URL"))
	c.Storage.ServiceKey = os.Getenv("STORAGE_SERVICE_KEY")
	c.Storage.RecordingsBucket = strings.TrimSpace(os.Getenv("STORAGE_RECORDINGS_BUCKET"))
	c.Storage.TranscriptsBucket = strings.TrimSpace(os.Getenv("STORAGE_TRANSCRIPTS_BUCKET"))

	c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Transcription.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	c.Transcription.Model = strings.TrimSpace(os.Getenv("TRANSCRIPTION_MODEL"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.APIKeySID == "" {
		errs = append(errs, errors.New("TWILIO_API_KEY_SID is required"))
	}
	if c.Twilio.APIKeySecret == "" {
		errs = append(errs, errors.New("TWILIO_API_KEY_SECRET is required"))
	}
	if c.Twilio.TwiMLAppSID == "" {
		errs = append(errs, errors.New("TWILIO_TWIML_APP_SID is required"))
	}
	if c.Twilio.CallbackBaseURL == "" {
		errs = append(errs, errors.New("TWILIO_CALLBACK_BASE_URL is required"))
	} else if !strings.HasPrefix(c.Twilio.CallbackBaseURL, "http://") && !strings.HasPrefix(c.Twilio.CallbackBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("TWILIO_CALLBACK_BASE_URL must be an http(s) URL, got %q", c.Twilio.CallbackBaseURL))
	}
	c.Twilio.CallbackBaseURL = strings.TrimRight(c.Twilio.CallbackBaseURL, "/")
	if c.Twilio.PendingWindow <= 0 {
		c.Twilio.PendingWindow = 5 * time.Minute
	}

	if c.Storage.BaseURL == "" {
		errs = append(errs, errors.New("STORAGE_BASE_URL is required"))
	}
	if c.Storage.ServiceKey == "" {
		errs = append(errs, errors.New("STORAGE_SERVICE_KEY is required"))
	}
	if c.Storage.RecordingsBucket == "" {
		c.Storage.RecordingsBucket = "call-recordings"
	}
	if c.Storage.TranscriptsBucket == "" {
		c.Storage.TranscriptsBucket = "call-transcripts"
	}

	if c.Transcription.Enabled() && c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.BaseURL != "" &&
		!strings.HasPrefix(c.Transcription.BaseURL, "http://") &&
		!strings.HasPrefix(c.Transcription.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("OPENAI_BASE_URL must be an http(s) URL, got %q", c.Transcription.BaseURL))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
