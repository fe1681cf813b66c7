package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kb-chat/internal/media"
)

func (h *Handler) ResolveMedia(c *gin.Context) {
	if h.Resolver == nil {
		unavailable(c, "media store")
		return
	}
	m, err := h.Resolver.Resolve(c.Request.Context(), strings.TrimSpace(c.Query("source")))
	if err != nil {
		h.failMedia(c, err)
		return
	}
	common.OK(c, gin.H{"media": m, "kind": media.KindOf(m.SourceRef), "inline": media.KindOf(m.SourceRef).Inline()})
}

// OpenMedia is the "show document" action: resolve on demand and tell the
// client how to open it.
func (h *Handler) OpenMedia(c *gin.Context) {
	if h.Resolver == nil {
		unavailable(c, "media store")
		return
	}
	target, err := h.Resolver.Open(c.Request.Context(), strings.TrimSpace(c.Query("source")), middleware.Identity(c))
	if err != nil {
		h.failMedia(c, err)
		return
	}
	common.OK(c, target)
}

func (h *Handler) failMedia(c *gin.Context, err error) {
	switch {
	case errors.Is(err, media.ErrEmptySource):
		common.Fail(c, http.StatusBadRequest, 10009, "source is required")
	case errors.Is(err, auth.ErrUnauthenticated):
		common.Fail(c, http.StatusUnauthorized, 40104, "authentication failed, please sign in again")
	case errors.Is(err, media.ErrNotAvailable):
		common.Fail(c, http.StatusNotFound, 40006, "document not available")
	default:
		h.Log.Warnw("media resolution failed", "request_id", c.GetString(middleware.RequestIDKey), "err", err)
		common.Fail(c, http.StatusBadGateway, 50201, "could not resolve media")
	}
}

type presignUploadReq struct {
	FileName    string `json:"file_name" binding:"required"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (h *Handler) PresignUpload(c *gin.Context) {
	if h.Uploads == nil {
		unavailable(c, "upload store")
		return
	}
	var req presignUploadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ticket, err := h.Uploads.Presign(c.Request.Context(), req.FileName, req.Size, req.ContentType)
	switch {
	case errors.Is(err, media.ErrFileType):
		common.Fail(c, http.StatusBadRequest, 10010, "file type not allowed")
	case errors.Is(err, media.ErrFileTooLarge):
		common.Fail(c, http.StatusRequestEntityTooLarge, 10011, "file exceeds 50MB limit")
	case err != nil:
		h.Log.Warnw("presign upload failed", "file", req.FileName, "err", err)
		common.Fail(c, http.StatusBadGateway, 50202, "could not prepare upload")
	default:
		common.OK(c, ticket)
	}
}
