package routes

import (
	"cabgo/handlers"
	"cabgo/utils"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterVoiceRoutes registers the telephony endpoints.
func RegisterVoiceRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	voice := r.Group("/voice")
	{
		// Telephony webhook for a new inbound call; answers with TwiML.
		voice.POST("/inbound", hb.InboundCallHandler)

		// Bidirectional media stream, one websocket per call.
		voice.GET("/stream", hb.MediaStreamHandler)

		// Request/response fallback for gateways without media streams.
		voice.POST("/gather", hb.GatherHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint reporting the
// latest backend snapshot from the health monitor.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"message":  "Hi, I'm the cab line",
			"backends": utils.GetHealthStatus(),
		})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterVoiceRoutes(r, hb)
	RegisterHealthRoute(r)
}
