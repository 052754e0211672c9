package identity

import (
	"context"
	"errors"

	"dialdesk/internal/calls"
	"dialdesk/internal/pending"
	"dialdesk/pkg/logger"
)

// Attribution is the outcome of identity resolution for one call leg.
// Both ids empty means "not yet resolvable"; the reconciler holds the
// record back rather than persisting partial attribution.
type Attribution struct {
	UserID    string
	TeamID    string
	TeamPhone string
}

func (a Attribution) Complete() bool { return a.UserID != "" && a.TeamID != "" }

// LegContext is everything a webhook event can tell us about who a call
// belongs to. ExplicitUserID/ExplicitTeamID come from the side-channel the
// call-control responder put on the callback URL.
type LegContext struct {
	ExplicitUserID string
	ExplicitTeamID string
	From           string
	To             string
	ProviderStatus string
}

// Resolver maps a raw call leg to an internal user and team.
type Resolver struct {
	repo    Repository
	pending pending.Tracker
}

func NewResolver(repo Repository, tracker pending.Tracker) *Resolver {
	return &Resolver{repo: repo, pending: tracker}
}

// Resolve applies the attribution rules in priority order; the first rule
// producing a user id wins. Lookup failures are not fatal: the same call
// id will be retried on its next webhook, so errors degrade to an empty
// attribution and a log line.
func (r *Resolver) Resolve(ctx context.Context, leg LegContext) Attribution {
	log := logger.From(ctx)

	userID := leg.ExplicitUserID
	if userID == "" {
		userID = calls.ClientIdentityUser(leg.From)
	}
	if userID == "" && inboundAnswered(leg.ProviderStatus) {
		userID = calls.ClientIdentityUser(leg.To)
	}
	if userID == "" {
		entry, ok, err := r.pending.Consume(ctx, leg.To)
		if err != nil {
			log.Warn("pending call lookup failed", "to", leg.To, "err", err)
		} else if ok {
			userID = entry.UserID
		}
	}

	out := Attribution{UserID: userID, TeamID: leg.ExplicitTeamID}

	if out.TeamID == "" && userID != "" {
		user, err := r.repo.GetUser(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("attributed user not found", "user_id", userID)
		case err != nil:
			log.Warn("user lookup failed", "user_id", userID, "err", err)
		default:
			out.TeamID = user.TeamID
		}
	}

	if out.TeamID == "" {
		if team, ok := r.teamByEitherLeg(ctx, leg.From, leg.To); ok {
			out.TeamID = team.ID
			out.TeamPhone = team.PhoneNumber
		}
	}

	if out.TeamID != "" && out.TeamPhone == "" {
		team, err := r.repo.GetTeam(ctx, out.TeamID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn("team lookup failed", "team_id", out.TeamID, "err", err)
			}
		} else {
			out.TeamPhone = team.PhoneNumber
		}
	}

	return out
}

func (r *Resolver) teamByEitherLeg(ctx context.Context, from, to string) (Team, bool) {
	log := logger.From(ctx)
	for _, number := range []string{from, to} {
		if number == "" || calls.IsClientIdentity(number) {
			continue
		}
		team, err := r.repo.GetTeamByPhone(ctx, number)
		if err == nil {
			return team, true
		}
		if !errors.Is(err, ErrNotFound) {
			log.Warn("team-by-phone lookup failed", "number", number, "err", err)
		}
	}
	return Team{}, false
}

func inboundAnswered(providerStatus string) bool {
	return providerStatus == "answered" || providerStatus == "in-progress"
}
