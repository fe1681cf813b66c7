package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/x", AuthRequired("s"), func(c *gin.Context) {
		uid, ok := UserID(c)
		require.True(t, ok)
		tok, err := Identity(c).SessionToken(c.Request.Context())
		require.NoError(t, err)
		c.String(http.StatusOK, "%d:%s", uid, tok[:3])
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	tok, err := auth.SignJWT(7, "s", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7:"+tok[:3], w.Body.String())
}

func TestRateLimitPerClient(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(0.001, 2), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	newReq := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		return req
	}
	assert.Equal(t, http.StatusNoContent, serve(r, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, newReq("10.0.0.1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, newReq("10.0.0.2")).Code)
}

func TestLimiterPoolEvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newLimiterPool(1, 1)
	p.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		p.get("ip:10.0.0." + strconv.Itoa(i))
	}
	assert.Len(t, p.m, 100)
	first := p.get("ip:10.0.0.1")

	now = now.Add(limiterIdle / 2)
	assert.Same(t, first, p.get("ip:10.0.0.1"))

	now = now.Add(limiterIdle/2 + time.Second)
	assert.Same(t, first, p.get("ip:10.0.0.1"))
	assert.Len(t, p.m, 1)
}

func TestRecoveryAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logging.NewNop()), RequestID())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":50000`)

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = serve(r, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestSafeHeadersRedacts(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "a=b")
	h.Set("Accept", "text/event-stream")

	got := SafeHeaders(h)
	assert.Equal(t, "<redacted>", got["Authorization"])
	assert.Equal(t, "<redacted>", got["Cookie"])
	assert.Equal(t, "text/event-stream", got["Accept"])
}
