package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func performRequest(handler gin.HandlerFunc, path string) *gin.Context {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", path, nil)
	handler(c)
	return c
}

func TestRateLimit_SecondRequestWithinWindowAborted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := RateLimit(time.Minute)

	c1 := performRequest(handler, "/api/v1/notebooks/nb1/qa")
	require.False(t, c1.IsAborted())

	c2 := performRequest(handler, "/api/v1/notebooks/nb1/qa")
	require.True(t, c2.IsAborted())
}

func TestRateLimit_DistinctPathsDoNotShareWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := RateLimit(time.Minute)

	c1 := performRequest(handler, "/api/v1/notebooks/nb1/qa")
	require.False(t, c1.IsAborted())

	c2 := performRequest(handler, "/api/v1/notebooks/nb2/outputs")
	require.False(t, c2.IsAborted())
}

func TestRateLimit_ZeroWindowDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := RateLimit(0)

	for i := 0; i < 5; i++ {
		c := performRequest(handler, "/api/v1/notebooks/nb1/qa")
		require.False(t, c.IsAborted())
	}
}
