package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kb-chat/internal/chat"
	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kb-chat/internal/render"
)

type createSessionReq struct {
	Provider string `json:"provider"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid, req.Provider)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10007, err.Error())
		return
	}
	common.OK(c, gin.H{"session_id": sess.SessionID, "provider": sess.Provider})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		h.failChat(c, err)
		return
	}
	views := make([]chat.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View())
	}
	common.OK(c, gin.H{"messages": views})
}

func (h *Handler) ClearChatSession(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.ChatSvc.ClearSession(c.Request.Context(), uid, c.Param("session_id")); err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, nil)
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.ChatSvc.Submit(c.Request.Context(), uid, req.SessionID, req.Message, h.Settings.Get(uid), middleware.Identity(c))
	if err != nil {
		h.failChat(c, err)
		return
	}
	common.OK(c, gin.H{
		"session_id": req.SessionID,
		"message":    msg.View(),
	})
}

func (h *Handler) SendChatMessageStream(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	w, ok := startSSE(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	chunks, done, errs := h.ChatSvc.SubmitStream(ctx, uid, req.SessionID, req.Message, h.Settings.Get(uid), middleware.Identity(c))

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		if done == nil && errs == nil {
			return
		}
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			w.send("chunk", gin.H{"type": "chunk", "delta": ch})

		case <-ticker.C:
			w.send("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.send("error", gin.H{"type": "error", "message": chatErrorMessage(err)})
			return

		case msg, ok := <-done:
			if !ok {
				done = nil
				continue
			}
			// chunks closes right after done is sent; flush what is buffered
			if chunks != nil {
				for ch := range chunks {
					w.send("chunk", gin.H{"type": "chunk", "delta": ch})
				}
			}
			w.send("done", gin.H{"type": "done", "message": msg.View()})
			return

		case <-ctx.Done():
			return
		}
	}
}

// RenderMessage streams citation resolution for one message: a "message"
// event with every segment, one "citation" event per citation as it
// settles, then "done".
func (h *Handler) RenderMessage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10008, "invalid message index")
		return
	}
	msg, err := h.ChatSvc.GetMessage(c.Request.Context(), uid, c.Param("session_id"), index)
	if err != nil {
		h.failChat(c, err)
		return
	}

	w, ok := startSSE(c)
	if !ok {
		return
	}
	w.send("message", msg.View())

	if h.Resolver == nil {
		w.send("done", gin.H{"type": "done", "resolver": "unavailable"})
		return
	}

	ctx := c.Request.Context()
	view := render.NewView(ctx, h.Resolver, msg.Segments(), h.Log)
	defer view.Close()

	for ev := range view.Stream(ctx) {
		w.send("citation", ev)
	}
	if ctx.Err() == nil {
		w.send("done", gin.H{"type": "done"})
	}
}

func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, chat.ErrEmptyQuestion):
		return "message is empty"
	case errors.Is(err, chat.ErrAuth):
		return "authentication failed, please sign in again"
	}
	return "internal error"
}

func (h *Handler) failChat(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
	case errors.Is(err, chat.ErrMessageNotFound):
		common.Fail(c, http.StatusNotFound, 40005, "message not found")
	case errors.Is(err, chat.ErrEmptyQuestion):
		common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
	case errors.Is(err, chat.ErrAuth):
		common.Fail(c, http.StatusUnauthorized, 40104, "authentication failed, please sign in again")
	default:
		h.Log.Errorw("chat request failed", "request_id", c.GetString(middleware.RequestIDKey), "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
