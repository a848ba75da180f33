package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegroup/internal/api/handlers"
	"github.com/your-org/facegroup/internal/api/ws"
	"github.com/your-org/facegroup/internal/auth"
	"github.com/your-org/facegroup/internal/facegroup"
)

type RouterConfig struct {
	APIKey   string
	Pipeline handlers.NotificationHandler
	Service  *facegroup.Service
	Images   handlers.ImageOpener
	Hub      *ws.Hub
	// Checks are probed by /readyz.
	Checks []handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Notification webhook. The transport cannot send custom headers.
	webhookH := handlers.NewWebhookHandler(cfg.Pipeline)
	r.POST("/s3-event", webhookH.Receive)

	// Gallery reads are public, renames need the API key.
	faceH := handlers.NewFaceHandler(cfg.Service, cfg.Images)
	r.GET("/faces", faceH.List)
	r.GET("/faces/:faceId", faceH.Get)
	r.GET("/faces/:faceId/image", faceH.Image)

	protected := r.Group("/")
	protected.Use(auth.APIKeyMiddleware(cfg.APIKey))
	protected.POST("/faces/:faceId/rename", faceH.Rename)
	protected.POST("/name", faceH.Name)

	if cfg.Hub != nil {
		r.GET("/v1/ws", cfg.Hub.HandleWS)
	}

	return r
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		MaxAge:          12 * time.Hour,
	}
}
