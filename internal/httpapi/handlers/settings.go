package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/config"
)

func (h *Handler) GetInferenceSettings(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	common.OK(c, gin.H{"settings": h.Settings.Get(uid)})
}

// UpdateInferenceSettings applies the valid fields and reports the rest;
// one bad field never blocks the others.
func (h *Handler) UpdateInferenceSettings(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req config.InferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	settings, errs := h.Settings.Update(uid, req)
	common.OK(c, gin.H{"settings": settings, "errors": errs})
}
