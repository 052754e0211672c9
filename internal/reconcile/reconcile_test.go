package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialdesk/internal/calls"
	"dialdesk/internal/identity"
	"dialdesk/internal/pending"
	"dialdesk/internal/telephony"
)

var eventBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store      *calls.MemoryStore
	tracker    *pending.MemoryTracker
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := identity.NewMemoryRepo()
	repo.AddTeam(identity.Team{ID: "t1", Name: "Sales", PhoneNumber: "+15550009999"})
	repo.AddUser(identity.User{ID: "u1", Email: "u1@example.com", TeamID: "t1"})

	store := calls.NewMemoryStore()
	tracker := pending.NewMemoryTracker(pending.DefaultWindow)
	return &fixture{
		store:      store,
		tracker:    tracker,
		reconciler: New(store, identity.NewResolver(repo, tracker)),
	}
}

func intPtr(n int) *int             { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func TestHandleStatusOutboundLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	initiated := telephony.StatusEvent{
		CallSid:    "CA1",
		From:       "client:u1",
		To:         "+15551234567",
		CallStatus: "initiated",
		EventAt:    eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, initiated); err != nil {
		t.Fatalf("initiated: %v", err)
	}

	completed := telephony.StatusEvent{
		CallSid:      "CA1",
		From:         "client:u1",
		To:           "+15551234567",
		CallStatus:   "completed",
		EventAt:      eventBase.Add(40 * time.Second),
		StartedAt:    timePtr(eventBase),
		EndedAt:      timePtr(eventBase.Add(40 * time.Second)),
		CallDuration: intPtr(30),
	}
	if err := fx.reconciler.HandleStatus(ctx, completed); err != nil {
		t.Fatalf("completed: %v", err)
	}

	rec, err := fx.store.Get(ctx, "CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.Direction != calls.DirectionOutbound {
		t.Fatalf("direction = %s", rec.Direction)
	}
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("attribution = %s/%s", rec.UserID, rec.TeamID)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 30 {
		t.Fatalf("duration = %v", rec.DurationSeconds)
	}
}

func TestHandleStatusOutOfOrderDelivery(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	completed := telephony.StatusEvent{
		CallSid: "CA1", From: "client:u1", To: "+15551234567",
		CallStatus: "completed", EventAt: eventBase.Add(30 * time.Second),
		CallDuration: intPtr(30),
	}
	ringing := telephony.StatusEvent{
		CallSid: "CA1", From: "client:u1", To: "+15551234567",
		CallStatus: "ringing", EventAt: eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, completed); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if err := fx.reconciler.HandleStatus(ctx, ringing); err != nil {
		t.Fatalf("ringing: %v", err)
	}

	rec, _ := fx.store.Get(ctx, "CA1")
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("stale ringing overwrote terminal status: %s", rec.Status)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 30 {
		t.Fatalf("stale event cleared duration: %v", rec.DurationSeconds)
	}
}

func TestHandleStatusInboundPendingMatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// u1 dialed +15551234567 from the browser moments ago.
	if err := fx.tracker.Create(ctx, "u1", "+15551234567"); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	ev := telephony.StatusEvent{
		CallSid:       "CA2",
		From:          "+15550009999",
		To:            "+15551234567",
		CallStatus:    "completed",
		DirectionHint: "outbound-api",
		EventAt:       eventBase,
		CallDuration:  intPtr(30),
	}
	if err := fx.reconciler.HandleStatus(ctx, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rec, err := fx.store.Get(ctx, "CA2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("pending match not attributed: %s/%s", rec.UserID, rec.TeamID)
	}
	if rec.Direction != calls.DirectionOutbound {
		t.Fatalf("direction = %s", rec.Direction)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 30 {
		t.Fatalf("duration = %v", rec.DurationSeconds)
	}
}

func TestHandleStatusHoldsBackUnattributed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ev := telephony.StatusEvent{
		CallSid:    "CA3",
		From:       "+15557654321",
		To:         "+15551111111", // no team owns this number
		CallStatus: "ringing",
		EventAt:    eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := fx.store.Get(ctx, "CA3"); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("unattributed record persisted: %v", err)
	}

	// Next delivery carries the side-channel hint and unblocks the record.
	ev.UserIDHint = "u1"
	ev.EventAt = eventBase.Add(5 * time.Second)
	if err := fx.reconciler.HandleStatus(ctx, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rec, err := fx.store.Get(ctx, "CA3")
	if err != nil {
		t.Fatalf("get after hint: %v", err)
	}
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("attribution = %s/%s", rec.UserID, rec.TeamID)
	}
}

func TestHandleStatusSkipsIntermediateChildLegs(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Fan-out leg callbacks carry the leg's identity and team as query
	// hints, so even an unanswered child arrives attributable.
	ringingChild := telephony.StatusEvent{
		CallSid:       "CA10-child",
		ParentCallSid: "CA10",
		From:          "+15557654321",
		To:            "client:u1",
		CallStatus:    "ringing",
		UserIDHint:    "u1",
		TeamIDHint:    "t1",
		EventAt:       eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, ringingChild); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := fx.store.Get(ctx, "CA10-child"); !errors.Is(err, calls.ErrNotFound) {
		t.Fatal("intermediate child leg was persisted")
	}

	// A missed child leg is an outcome and must be kept.
	missedChild := ringingChild
	missedChild.CallStatus = "no-answer"
	missedChild.EventAt = eventBase.Add(20 * time.Second)
	if err := fx.reconciler.HandleStatus(ctx, missedChild); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rec, err := fx.store.Get(ctx, "CA10-child")
	if err != nil {
		t.Fatalf("missed child not persisted: %v", err)
	}
	if rec.Status != calls.StatusMissed {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("attribution = %s/%s", rec.UserID, rec.TeamID)
	}
}

func TestHandleStatusChildSuppressionKeepsPendingIntent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.tracker.Create(ctx, "u1", "+15551234567"); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	// A suppressed intermediate child event must not consume the dial
	// intent on its way to being discarded.
	ringingChild := telephony.StatusEvent{
		CallSid:       "CA20-child",
		ParentCallSid: "CA20",
		From:          "+15550009999",
		To:            "+15551234567",
		CallStatus:    "ringing",
		EventAt:       eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, ringingChild); err != nil {
		t.Fatalf("child: %v", err)
	}

	parent := telephony.StatusEvent{
		CallSid:    "CA20",
		From:       "+15550009999",
		To:         "+15551234567",
		CallStatus: "completed",
		EventAt:    eventBase.Add(30 * time.Second),
	}
	if err := fx.reconciler.HandleStatus(ctx, parent); err != nil {
		t.Fatalf("parent: %v", err)
	}

	rec, err := fx.store.Get(ctx, "CA20")
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("pending intent burned by suppressed child: %s/%s", rec.UserID, rec.TeamID)
	}
}

func TestHandleStatusMissedPreservesAttribution(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	answered := telephony.StatusEvent{
		CallSid: "CA4", From: "+15557654321", To: "client:u1",
		CallStatus: "answered", EventAt: eventBase,
	}
	if err := fx.reconciler.HandleStatus(ctx, answered); err != nil {
		t.Fatalf("answered: %v", err)
	}

	// A late no-answer from a parallel leg must not strip attribution.
	missed := telephony.StatusEvent{
		CallSid: "CA4", From: "+15557654321", To: "+15550009999",
		CallStatus: "no-answer", EventAt: eventBase.Add(25 * time.Second),
	}
	if err := fx.reconciler.HandleStatus(ctx, missed); err != nil {
		t.Fatalf("missed: %v", err)
	}

	rec, _ := fx.store.Get(ctx, "CA4")
	if rec.UserID != "u1" || rec.TeamID != "t1" {
		t.Fatalf("missed event changed attribution: %s/%s", rec.UserID, rec.TeamID)
	}
}

func TestHandleStatusDropsMalformed(t *testing.T) {
	fx := newFixture(t)
	if err := fx.reconciler.HandleStatus(context.Background(), telephony.StatusEvent{}); err != nil {
		t.Fatalf("malformed payload should be acknowledged: %v", err)
	}
}

func TestDurationPrecedence(t *testing.T) {
	start := timePtr(eventBase)
	end := timePtr(eventBase.Add(42 * time.Second))

	cases := []struct {
		name string
		ev   telephony.StatusEvent
		want *int
	}{
		{"call duration wins", telephony.StatusEvent{CallDuration: intPtr(30), RecordingDuration: intPtr(28), Duration: intPtr(1)}, intPtr(30)},
		{"recording duration next", telephony.StatusEvent{RecordingDuration: intPtr(28), Duration: intPtr(1)}, intPtr(28)},
		{"bare duration next", telephony.StatusEvent{Duration: intPtr(1)}, intPtr(1)},
		{"derived from timestamps", telephony.StatusEvent{StartedAt: start, EndedAt: end}, intPtr(42)},
		{"nothing available", telephony.StatusEvent{}, nil},
		{"end before start ignored", telephony.StatusEvent{StartedAt: end, EndedAt: start}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := durationSeconds(tc.ev)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("got %d, want nil", *got)
			case tc.want != nil && (got == nil || *got != *tc.want):
				t.Fatalf("got %v, want %d", got, *tc.want)
			}
		})
	}
}
