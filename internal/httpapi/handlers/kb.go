package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kb-chat/internal/kb"
)

func (h *Handler) StartIngestion(c *gin.Context) {
	if h.KB == nil {
		unavailable(c, "knowledge base")
		return
	}
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	job, created, err := h.KB.Start(c.Request.Context(), uid, idempoKey)
	if err != nil {
		h.Log.Errorw("start ingestion failed", "request_id", c.GetString(middleware.RequestIDKey), "user_id", uid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}
	common.OK(c, gin.H{"job": job, "created": created})
}

func (h *Handler) GetIngestion(c *gin.Context) {
	if h.KB == nil {
		unavailable(c, "knowledge base")
		return
	}
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	job, err := h.KB.Status(c.Request.Context(), uid, c.Param("job_id"))
	if err != nil {
		if errors.Is(err, kb.ErrJobNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"job": job})
}
