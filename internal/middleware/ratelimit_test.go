package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/verify-ingame", rl.Limit(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return r
}

func hit(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/verify-ingame", nil)
	req.RemoteAddr = ip + ":50000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	r := limitedRouter(NewRateLimiter(1, 2))

	assert.Equal(t, http.StatusOK, hit(r, "1.2.3.4"))
	assert.Equal(t, http.StatusOK, hit(r, "1.2.3.4"))
}

func TestRateLimiter_RejectsPastBurst(t *testing.T) {
	r := limitedRouter(NewRateLimiter(1, 2))

	hit(r, "1.2.3.4")
	hit(r, "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "1.2.3.4"))
}

func TestRateLimiter_TracksClientsSeparately(t *testing.T) {
	r := limitedRouter(NewRateLimiter(1, 1))

	assert.Equal(t, http.StatusOK, hit(r, "1.2.3.4"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "1.2.3.4"))
	assert.Equal(t, http.StatusOK, hit(r, "5.6.7.8"))
}
