package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kb-chat/internal/metrics"
)

// NewRouter wires every route. gatherer serves /metrics; nil uses the
// default registry.
func NewRouter(d handlers.Deps, m *metrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	h := handlers.NewHandler(d)
	cfg := h.Cfg

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(h.Log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(h.Log))
	r.Use(middleware.Metrics(m))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/ping", h.Ping)

	// users register
	r.POST("/users", h.CreateUser)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/users/:id", h.GetUserByID)

	// Chat (JWT required)
	submit := middleware.RateLimit(cfg.SubmitRPS, cfg.SubmitBurst)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.DELETE("/chat/sessions/:session_id", h.ClearChatSession)
	authGroup.GET("/chat/sessions/:session_id/messages/:index/render", h.RenderMessage)
	authGroup.POST("/chat/messages", submit, h.SendChatMessage)
	authGroup.POST("/chat/messages/stream", submit, h.SendChatMessageStream)

	// Media
	authGroup.GET("/media/resolve", h.ResolveMedia)
	authGroup.GET("/media/open", h.OpenMedia)
	authGroup.POST("/uploads/presign", h.PresignUpload)

	// Settings
	authGroup.GET("/settings/inference", h.GetInferenceSettings)
	authGroup.PUT("/settings/inference", h.UpdateInferenceSettings)

	// Knowledge base
	authGroup.POST("/kb/ingestions", h.StartIngestion)
	authGroup.GET("/kb/ingestions/:job_id", h.GetIngestion)

	return r
}
