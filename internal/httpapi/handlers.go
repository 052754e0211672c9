package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"dialdesk/internal/auth"
	"dialdesk/internal/calls"
	"dialdesk/internal/identity"
	"dialdesk/internal/pending"
	"dialdesk/internal/rbac"
	"dialdesk/internal/reconcile"
	"dialdesk/internal/recording"
	"dialdesk/internal/reporting"
	"dialdesk/internal/telephony"
	"dialdesk/internal/transcription"
	"dialdesk/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Users       identity.Repository
	Calls       calls.Store
	Pending     pending.Tracker
	Reconciler  *reconcile.Reconciler
	Recordings  *recording.Pipeline
	Transcripts *transcription.Pipeline
	Analytics   *reporting.Service
	CallControl telephony.CallControl
	Tokens      telephony.TokenIssuer

	// DefaultCallerID is used for outbound dials when the user's team has
	// no phone number.
	DefaultCallerID string
}

/* ===================== PROVIDER WEBHOOKS ===================== */

// CallStatus receives the voice status callback. The provider retries on
// non-2xx, so every outcome short of an internal failure is a 200: a
// malformed or unattributable event is dropped or held back inside the
// reconciler, and redelivering it would change nothing.
func (h Handlers) CallStatus(c *gin.Context) {
	ev, err := telephony.ParseStatusEvent(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("unreadable status callback", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.Reconciler.HandleStatus(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Error("status reconciliation failed", "call_id", ev.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.Status(http.StatusOK)
}

// Recording receives the recording-ready callback. Fetch/upload failures
// return 500 on purpose so the provider redelivers.
func (h Handlers) Recording(c *gin.Context) {
	ev, err := telephony.ParseRecordingEvent(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("unreadable recording callback", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.Recordings.HandleRecording(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Error("recording pipeline failed", "call_id", ev.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recording processing failed"})
		return
	}
	c.Status(http.StatusOK)
}

// Transcription receives the transcription callback.
func (h Handlers) Transcription(c *gin.Context) {
	ev, err := telephony.ParseTranscriptionEvent(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("unreadable transcription callback", "err", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.Transcripts.HandleTranscription(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Error("transcription pipeline failed", "call_id", ev.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transcription processing failed"})
		return
	}
	c.Status(http.StatusOK)
}

/* ===================== CALL CONTROL (TwiML) ===================== */

// VoiceOutbound answers the TwiML application request for a browser dial.
// From is "client:<user id>"; To is the PSTN destination the agent typed.
func (h Handlers) VoiceOutbound(c *gin.Context) {
	log := logger.FromGin(c)
	to := c.PostForm("To")
	userID := calls.ClientIdentityUser(c.PostForm("From"))
	if to == "" || userID == "" {
		log.Warn("outbound voice request missing To or client identity")
		h.renderEmptyResponse(c)
		return
	}

	callerID := h.DefaultCallerID
	teamID := ""
	if user, err := h.Users.GetUser(c.Request.Context(), userID); err == nil && user.TeamID != "" {
		teamID = user.TeamID
		if team, err := h.Users.GetTeam(c.Request.Context(), user.TeamID); err == nil && team.PhoneNumber != "" {
			callerID = team.PhoneNumber
		}
	} else if err != nil && !errors.Is(err, identity.ErrNotFound) {
		log.Warn("user lookup failed for outbound dial", "user_id", userID, "err", err)
	}

	// Best-effort: the matching status webhook may race this request, so a
	// failed pending write degrades attribution, never the call itself.
	if err := h.Pending.Create(c.Request.Context(), userID, to); err != nil {
		log.Warn("pending call tracking failed", "user_id", userID, "err", err)
	}

	xml, err := h.CallControl.OutboundDial(to, callerID, userID, teamID)
	if err != nil {
		log.Error("outbound markup failed", "err", err)
		h.renderEmptyResponse(c)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(xml))
}

// VoiceInbound answers the TwiML request for a call to a team number and
// rings every member of the owning team.
func (h Handlers) VoiceInbound(c *gin.Context) {
	log := logger.FromGin(c)
	from := c.PostForm("From")
	to := c.PostForm("To")

	team, err := h.Users.GetTeamByPhone(c.Request.Context(), to)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Error("team lookup failed for inbound call", "to", to, "err", err)
		} else {
			log.Warn("inbound call to unknown number", "to", to)
		}
		h.renderEmptyResponse(c)
		return
	}

	members, err := h.Users.ListTeamUsers(c.Request.Context(), team.ID)
	if err != nil {
		log.Error("team member lookup failed", "team_id", team.ID, "err", err)
		h.renderEmptyResponse(c)
		return
	}
	identities := make([]string, 0, len(members))
	for _, m := range members {
		identities = append(identities, m.ID)
	}

	xml, err := h.CallControl.InboundFanout(from, team.ID, identities)
	if err != nil {
		log.Error("inbound markup failed", "team_id", team.ID, "err", err)
		h.renderEmptyResponse(c)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(xml))
}

// renderEmptyResponse hangs up politely; a non-2xx here would make the
// provider read an error message to the caller.
func (h Handlers) renderEmptyResponse(c *gin.Context) {
	c.Data(http.StatusOK, "application/xml", []byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

/* ===================== AUTH ===================== */

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair for a known user.
//
// NOTE: credential verification is delegated to the identity provider in
// front of this API; this endpoint only mints service tokens.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	user, err := h.Users.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), user.ID, user.TeamID, user.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// VoiceToken mints the browser softphone token for the authenticated user.
func (h Handlers) VoiceToken(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	token, err := h.Tokens.IssueVoiceToken(userID)
	if err != nil {
		logger.FromGin(c).Error("voice token issuance failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "identity": userID})
}

/* ===================== CALLS API ===================== */

// ListCalls returns the activity feed. Agents are scoped to their own
// calls; admins see everything and may filter by user_id.
func (h Handlers) ListCalls(c *gin.Context) {
	f := calls.ListFilter{
		Direction: c.Query("direction"),
		Status:    calls.Status(c.Query("status")),
		Number:    c.Query("number"),
		Search:    c.Query("search"),
		TeamID:    c.Query("team_id"),
		From:      parseTimeQuery(c.Query("from")),
		To:        parseTimeQuery(c.Query("to")),
		Offset:    parseIntQuery(c.Query("offset")),
		Limit:     parseIntQuery(c.Query("limit")),
	}

	role, _ := auth.Role(c.Request.Context())
	if rbac.IsAdmin(role) {
		f.UserID = c.Query("user_id")
	} else {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}
		f.UserID = userID
	}

	rows, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("call listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows, "count": len(rows)})
}

// GetCall returns one call record.
func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	role, _ := auth.Role(c.Request.Context())
	if !rbac.IsAdmin(role) {
		userID, _ := auth.UserID(c.Request.Context())
		if rec.UserID != userID {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
	}
	c.JSON(http.StatusOK, rec)
}

/* ===================== ANALYTICS ===================== */

// AnalyticsSummary returns the dashboard aggregate for a preset period.
func (h Handlers) AnalyticsSummary(c *gin.Context) {
	req := reporting.SummaryRequest{
		Period: reporting.Period(c.Query("period")),
		TeamID: c.Query("team_id"),
	}

	role, _ := auth.Role(c.Request.Context())
	if rbac.IsAdmin(role) {
		req.UserID = c.Query("user_id")
	} else {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}
		req.UserID = userID
	}

	sum, err := h.Analytics.Summary(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
			return
		}
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

/* ===================== USER ADMIN ===================== */

// Me returns the authenticated user's profile.
func (h Handlers) Me(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	user, err := h.Users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers is the admin user directory.
func (h Handlers) ListUsers(c *gin.Context) {
	users, err := h.Users.ListUsers(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("user listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

type assignTeamRequest struct {
	TeamID string `json:"team_id"`
}

// AssignTeam moves a user between teams; an empty team_id unassigns.
func (h Handlers) AssignTeam(c *gin.Context) {
	var req assignTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := c.Param("id")
	if req.TeamID != "" {
		if _, err := h.Users.GetTeam(c.Request.Context(), req.TeamID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown team"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "team lookup failed"})
			return
		}
	}
	if err := h.Users.UpdateUserTeam(c.Request.Context(), userID, req.TeamID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.FromGin(c).Error("team assignment failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "assignment failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

/* ===================== QUERY HELPERS ===================== */

func parseTimeQuery(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseIntQuery(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
