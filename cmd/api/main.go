package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialdesk/internal/auth"
	"dialdesk/internal/calls"
	"dialdesk/internal/config"
	"dialdesk/internal/database"
	"dialdesk/internal/httpapi"
	"dialdesk/internal/identity"
	"dialdesk/internal/pending"
	"dialdesk/internal/reconcile"
	"dialdesk/internal/recording"
	"dialdesk/internal/reporting"
	"dialdesk/internal/storage"
	"dialdesk/internal/telephony"
	"dialdesk/internal/transcription"
	"dialdesk/pkg/logger"
	"dialdesk/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	objects, err := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.ServiceKey, 30*time.Second)
	if err != nil {
		log.Error("storage init failed", "err", err)
		os.Exit(1)
	}

	store := calls.NewPostgresStore(db)
	users := identity.NewPostgresRepo(db)
	tracker := pending.NewRedisTracker(rdb, cfg.Twilio.PendingWindow)
	resolver := identity.NewResolver(users, tracker)
	fetcher := telephony.NewRestMediaFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, 30*time.Second)

	transcripts := transcription.New(store, objects, cfg.Storage.TranscriptsBucket)
	var transcriber recording.Transcriber
	if cfg.Transcription.Enabled() {
		transcriber = transcription.NewWhisper(
			cfg.Transcription.BaseURL, cfg.Transcription.APIKey, cfg.Transcription.Model,
			transcripts, 2*time.Minute)
	} else {
		log.Warn("no transcription API key; transcripts depend on provider callbacks")
	}

	h := httpapi.Handlers{
		Auth:        authManager,
		Users:       users,
		Calls:       store,
		Pending:     tracker,
		Reconciler:  reconcile.New(store, resolver),
		Recordings:  recording.New(store, fetcher, objects, transcriber, cfg.Storage.RecordingsBucket),
		Transcripts: transcripts,
		Analytics:   reporting.NewService(store),
		CallControl: telephony.CallControl{
			CallbackBase:          cfg.Twilio.CallbackBaseURL,
			DefaultClientIdentity: cfg.Twilio.DefaultClientIdentity,
		},
		Tokens: telephony.TokenIssuer{
			AccountSID:   cfg.Twilio.AccountSID,
			APIKeySID:    cfg.Twilio.APIKeySID,
			APIKeySecret: cfg.Twilio.APIKeySecret,
			TwiMLAppSID:  cfg.Twilio.TwiMLAppSID,
		},
		DefaultCallerID: cfg.Twilio.CallerID,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	httpapi.Register(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
