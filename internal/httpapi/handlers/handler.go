package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kb-chat/internal/chat"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/config"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kb-chat/internal/kb"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/media"
	"gorm.io/gorm"
)

// Deps are the services the handlers call. Resolver, Uploads and KB may be
// nil when the matching backend is not configured; their routes then
// answer 503.
type Deps struct {
	DB       *gorm.DB
	Cfg      config.Config
	Log      *logging.Logger
	ChatSvc  *chat.Service
	Settings *config.InferenceStore
	Resolver *media.Resolver
	Uploads  *media.Uploads
	KB       *kb.Service
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logging.NewNop()
	}
	if d.Settings == nil {
		d.Settings = config.NewInferenceStore(d.Cfg.Inference)
	}
	return &Handler{Deps: d}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	return middleware.UserID(c)
}

func requireUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

func unavailable(c *gin.Context, what string) {
	common.Fail(c, http.StatusServiceUnavailable, 50300, what+" not configured")
}
