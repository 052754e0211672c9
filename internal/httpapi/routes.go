package httpapi

import (
	"dialdesk/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires HTTP routes to handlers.
// Keep this file free of business logic.
func Register(r *gin.Engine, h Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks and TwiML endpoints (public).
	// NOTE: protect these with Twilio signature validation at the edge in
	// production.
	twilio := r.Group("/twilio")
	{
		twilio.POST("/call-status", h.CallStatus)
		twilio.POST("/recording", h.Recording)
		twilio.POST("/transcription", h.Transcription)
	}
	voice := r.Group("/voice")
	{
		voice.POST("", h.VoiceOutbound)
		voice.POST("/incoming", h.VoiceInbound)
	}

	r.POST("/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(authMW)
	{
		api.GET("/me", h.Me)
		api.GET("/voice/token", h.VoiceToken)

		api.GET("/calls", h.ListCalls)
		api.GET("/calls/:id", h.GetCall)

		api.GET("/analytics/summary", h.AnalyticsSummary)

		admin := api.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/users", h.ListUsers)
			admin.PUT("/users/:id/team", h.AssignTeam)
		}
	}
}
