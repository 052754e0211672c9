package reconcile

import (
	"context"
	"errors"
	"time"

	"dialdesk/internal/calls"
	"dialdesk/internal/identity"
	"dialdesk/internal/telephony"
	"dialdesk/pkg/logger"
)

// Reconciler folds provider status callbacks into canonical call records.
// Webhooks arrive out of order and in duplicate; every decision here keys
// on the provider-reported event timestamp, never on arrival order, and
// the store's merge policy makes re-delivery a no-op.
type Reconciler struct {
	store    calls.Store
	resolver *identity.Resolver
}

func New(store calls.Store, resolver *identity.Resolver) *Reconciler {
	return &Reconciler{store: store, resolver: resolver}
}

// HandleStatus processes one call-status delivery. The provider retries on
// non-2xx, so anything short of a store failure is acknowledged: malformed
// payloads are dropped, unattributable records are held back until a later
// event resolves them.
func (r *Reconciler) HandleStatus(ctx context.Context, ev telephony.StatusEvent) error {
	log := logger.From(ctx)

	if ev.CallSid == "" {
		log.Warn("dropping status event without CallSid")
		return nil
	}

	status := calls.MapProviderStatus(ev.CallStatus)

	// Child legs only matter once they carry an outcome. Intermediate
	// child events would otherwise shadow the parent record in listings.
	// Checked before resolution: resolving consumes the pending dial
	// intent, which a discarded event must not burn.
	if ev.ParentCallSid != "" && status != calls.StatusCompleted && status != calls.StatusMissed {
		log.Debug("skipping intermediate child leg event",
			"call_id", ev.CallSid, "parent_id", ev.ParentCallSid, "status", string(status))
		return nil
	}

	attr := r.resolver.Resolve(ctx, identity.LegContext{
		ExplicitUserID: ev.UserIDHint,
		ExplicitTeamID: ev.TeamIDHint,
		From:           ev.From,
		To:             ev.To,
		ProviderStatus: ev.CallStatus,
	})

	direction := calls.ClassifyDirection(ev.From, ev.To, ev.DirectionHint, attr.TeamPhone)

	rec := calls.CallRecord{
		ID:              ev.CallSid,
		ParentCallID:    ev.ParentCallSid,
		Direction:       direction,
		FromNumber:      ev.From,
		ToNumber:        ev.To,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		DurationSeconds: durationSeconds(ev),
		Status:          status,
		StatusEventAt:   ev.EventAt,
		UserID:          attr.UserID,
		TeamID:          attr.TeamID,
	}

	existing, err := r.store.Get(ctx, rec.ID)
	switch {
	case err == nil:
		if rec.UserID == "" {
			rec.UserID = existing.UserID
		}
		if rec.TeamID == "" {
			rec.TeamID = existing.TeamID
		}
	case errors.Is(err, calls.ErrNotFound):
	default:
		return err
	}

	if rec.UserID == "" || rec.TeamID == "" {
		log.Info("holding back unattributed call event",
			"call_id", rec.ID, "status", string(rec.Status),
			"has_user", rec.UserID != "", "has_team", rec.TeamID != "")
		return nil
	}

	if err := r.store.Upsert(ctx, rec); err != nil {
		return err
	}
	log.Info("reconciled call event",
		"call_id", rec.ID, "status", string(rec.Status),
		"direction", string(rec.Direction), "user_id", rec.UserID, "team_id", rec.TeamID)
	return nil
}

// durationSeconds picks the most trustworthy duration the event offers.
// CallDuration is the billed talk time; RecordingDuration tracks it within
// a second; the bare Duration field is rounded up to whole minutes on some
// callbacks and is a last resort before deriving from timestamps.
func durationSeconds(ev telephony.StatusEvent) *int {
	switch {
	case ev.CallDuration != nil:
		return ev.CallDuration
	case ev.RecordingDuration != nil:
		return ev.RecordingDuration
	case ev.Duration != nil:
		return ev.Duration
	}
	if ev.StartedAt != nil && ev.EndedAt != nil && !ev.EndedAt.Before(*ev.StartedAt) {
		d := int(ev.EndedAt.Sub(*ev.StartedAt) / time.Second)
		return &d
	}
	return nil
}
