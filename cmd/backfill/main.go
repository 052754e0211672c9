package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"dialdesk/internal/calls"
	"dialdesk/internal/config"
	"dialdesk/internal/database"
	"dialdesk/internal/identity"
	"dialdesk/internal/pending"
	"dialdesk/internal/reconcile"
	"dialdesk/internal/telephony"
	"dialdesk/pkg/logger"
	"dialdesk/pkg/utils"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// backfill imports historical calls from the provider's REST API through
// the same reconciliation path the live webhooks use, so merge and
// attribution rules apply identically. Calls that cannot be attributed to
// a user and team are skipped, exactly as a live event would be held back.
func main() {
	var (
		limit     = flag.Int("limit", 500, "maximum calls to import")
		startDate = flag.String("start-date", "", "only calls started on/after this date (YYYY-MM-DD)")
		endDate   = flag.String("end-date", "", "only calls started before this date (YYYY-MM-DD)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	ctx := logger.With(context.Background(), log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	store := calls.NewPostgresStore(db)
	users := identity.NewPostgresRepo(db)
	// Historical imports have no live dial to match; an empty tracker makes
	// the pending-call rule a no-op.
	resolver := identity.NewResolver(users, pending.NewMemoryTracker(cfg.Twilio.PendingWindow))
	reconciler := reconcile.New(store, resolver)

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Twilio.AccountSID,
		Password: cfg.Twilio.AuthToken,
	})

	params := &openapi.ListCallParams{}
	params.SetPageSize(100)
	params.SetLimit(*limit)
	if t, ok := parseDate(*startDate); ok {
		params.SetStartTimeAfter(t)
	}
	if t, ok := parseDate(*endDate); ok {
		params.SetStartTimeBefore(t)
	}

	rows, err := client.Api.ListCall(params)
	if err != nil {
		log.Error("call listing failed", "err", err)
		os.Exit(1)
	}

	imported := 0
	for _, row := range rows {
		ev, ok := toStatusEvent(row)
		if !ok {
			continue
		}
		if err := reconciler.HandleStatus(ctx, ev); err != nil {
			log.Error("import failed", "call_id", ev.CallSid, "err", err)
			continue
		}
		imported++
	}
	fmt.Printf("processed %d calls (%d fetched)\n", imported, len(rows))
}

func toStatusEvent(row openapi.ApiV2010Call) (telephony.StatusEvent, bool) {
	if row.Sid == nil || *row.Sid == "" {
		return telephony.StatusEvent{}, false
	}
	ev := telephony.StatusEvent{
		CallSid:       *row.Sid,
		ParentCallSid: deref(row.ParentCallSid),
		From:          deref(row.From),
		To:            deref(row.To),
		CallStatus:    deref(row.Status),
		DirectionHint: deref(row.Direction),
		StartedAt:     parseRESTTime(deref(row.StartTime)),
		EndedAt:       parseRESTTime(deref(row.EndTime)),
	}

	if d, err := strconv.Atoi(deref(row.Duration)); err == nil && d >= 0 {
		ev.Duration = &d
	}

	// Historic records carry no webhook timestamp; the call's own end (or
	// start) time orders them correctly against any later live events.
	switch {
	case ev.EndedAt != nil:
		ev.EventAt = *ev.EndedAt
	case ev.StartedAt != nil:
		ev.EventAt = *ev.StartedAt
	default:
		ev.EventAt = time.Now().UTC()
	}
	return ev, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseRESTTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		slog.Warn("ignoring unparseable date flag", "value", s)
		return time.Time{}, false
	}
	return t, true
}
